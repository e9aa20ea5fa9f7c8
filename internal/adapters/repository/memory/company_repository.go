package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ogurasousui/company-registry/internal/core/company"
)

// CompanyRepository はメモリ上の company.Repository 実装です。
type CompanyRepository struct {
	store *Store
}

func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*company.Record, error) {
	rec, ok := r.store.read(ctx).companies[id]
	if !ok {
		return nil, company.ErrCompanyNotFound
	}
	return rec.Clone(), nil
}

func (r *CompanyRepository) FindByCode(ctx context.Context, code string) (*company.Record, error) {
	st := r.store.read(ctx)
	id, ok := st.codeIndex[code]
	if !ok {
		return nil, company.ErrCompanyNotFound
	}
	return st.companies[id].Clone(), nil
}

// FindByCodeForUpdate は FindByCode と同じです。書き込みトランザクションは Store 全体で直列化されています。
func (r *CompanyRepository) FindByCodeForUpdate(ctx context.Context, code string) (*company.Record, error) {
	return r.FindByCode(ctx, code)
}

func (r *CompanyRepository) Create(ctx context.Context, record *company.Record) (*company.Record, error) {
	var created *company.Record
	err := r.store.write(ctx, func(st *state) error {
		if _, exists := st.codeIndex[record.Code]; exists {
			return company.ErrCodeAlreadyExists
		}
		rec := record.Clone()
		rec.ID = r.store.newID()
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = rec.LastUpdated
		}
		st.companies[rec.ID] = rec
		st.codeIndex[rec.Code] = rec.ID
		created = rec.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *CompanyRepository) UpdateFields(ctx context.Context, record *company.Record, fields []company.Field, lastUpdated time.Time) (*company.Record, error) {
	var updated *company.Record
	err := r.store.write(ctx, func(st *state) error {
		existing, ok := st.companies[record.ID]
		if !ok {
			return company.ErrCompanyNotFound
		}
		next := existing.Clone()
		for _, f := range fields {
			next.Set(f, record.Get(f))
		}
		next.LastUpdated = lastUpdated
		st.companies[next.ID] = next
		updated = next.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *CompanyRepository) FindOlderThan(ctx context.Context, cutoff time.Time) ([]*company.Record, error) {
	st := r.store.read(ctx)
	var out []*company.Record
	for _, rec := range st.companies {
		if !rec.LastUpdated.After(cutoff) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].LastUpdated.Before(out[j].LastUpdated)
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}
