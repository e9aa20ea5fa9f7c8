package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ogurasousui/company-registry/internal/core/company"
	pgdb "github.com/ogurasousui/company-registry/internal/platform/db/postgres"
)

const companyColumns = `id, code, name, status, registration_date, authorized_capital, legal_form,
               main_activity, contact_info, authorized_person, tax_info, registration_authorities,
               last_inspection_date, company_profile, last_updated, created_at`

// CompanyRepository は PostgreSQL を利用した会社レコード永続化の実装です。
type CompanyRepository struct {
	pool pgdb.Queryer
}

// NewCompanyRepository は CompanyRepository を生成します。
func NewCompanyRepository(pool pgdb.Queryer) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

// Create は会社レコードを新規作成します。
func (r *CompanyRepository) Create(ctx context.Context, c *company.Record) (*company.Record, error) {
	args := []any{c.Code}
	for _, f := range company.AllFields {
		args = append(args, nullableString(c.Get(f)))
	}
	args = append(args, c.LastUpdated, c.CreatedAt)

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO companies (code, name, status, registration_date, authorized_capital, legal_form,
               main_activity, contact_info, authorized_person, tax_info, registration_authorities,
               last_inspection_date, company_profile, last_updated, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING `+companyColumns, args...)

	created, err := scanCompany(row)
	if err != nil {
		return nil, translateCompanyPgError(err)
	}
	return created, nil
}

// UpdateFields は fields に含まれる属性と last_updated のみを更新します。
func (r *CompanyRepository) UpdateFields(ctx context.Context, c *company.Record, fields []company.Field, lastUpdated time.Time) (*company.Record, error) {
	assignments := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, f := range fields {
		if !isKnownField(f) {
			return nil, fmt.Errorf("postgres: unknown company field %q", f)
		}
		args = append(args, nullableString(c.Get(f)))
		assignments = append(assignments, string(f)+" = $"+strconv.Itoa(len(args)))
	}
	args = append(args, lastUpdated)
	assignments = append(assignments, "last_updated = $"+strconv.Itoa(len(args)))
	args = append(args, c.ID)

	query := `
        UPDATE companies
           SET ` + strings.Join(assignments, ", ") + `
         WHERE id = $` + strconv.Itoa(len(args)) + `
        RETURNING ` + companyColumns

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	updated, err := scanCompany(exec.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translateCompanyPgError(err)
	}
	return updated, nil
}

// FindByID は ID で会社レコードを取得します。UUID として解釈できない ID は問い合わせずに ErrCompanyNotFound を返します。
func (r *CompanyRepository) FindByID(ctx context.Context, id string) (*company.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, company.ErrCompanyNotFound
	}
	return r.findOne(ctx, `
        SELECT `+companyColumns+`
          FROM companies
         WHERE id = $1
         LIMIT 1
    `, id)
}

// FindByCode はコードで会社レコードを取得します。
func (r *CompanyRepository) FindByCode(ctx context.Context, code string) (*company.Record, error) {
	return r.findOne(ctx, `
        SELECT `+companyColumns+`
          FROM companies
         WHERE code = $1
         LIMIT 1
    `, code)
}

// FindByCodeForUpdate はコードで会社レコードを取得し、トランザクション終了まで行ロックを保持します。
func (r *CompanyRepository) FindByCodeForUpdate(ctx context.Context, code string) (*company.Record, error) {
	return r.findOne(ctx, `
        SELECT `+companyColumns+`
          FROM companies
         WHERE code = $1
           FOR UPDATE
    `, code)
}

// FindOlderThan は last_updated が cutoff 以前の会社レコードを古い順に取得します。
func (r *CompanyRepository) FindOlderThan(ctx context.Context, cutoff time.Time) ([]*company.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+companyColumns+`
          FROM companies
         WHERE last_updated <= $1
         ORDER BY last_updated ASC, code ASC
    `, cutoff)
	if err != nil {
		return nil, translateCompanyPgError(err)
	}
	defer rows.Close()

	var records []*company.Record
	for rows.Next() {
		rec, err := scanCompany(rows)
		if err != nil {
			return nil, translateCompanyPgError(err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, translateCompanyPgError(err)
	}
	return records, nil
}

func (r *CompanyRepository) findOne(ctx context.Context, query string, arg any) (*company.Record, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	found, err := scanCompany(exec.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, translateCompanyPgError(err)
	}
	return found, nil
}

func scanCompany(row pgx.Row) (*company.Record, error) {
	var (
		rec                    company.Record
		attrs                  [12]sql.NullString
		lastUpdated, createdAt time.Time
	)

	dest := []any{&rec.ID, &rec.Code}
	for i := range attrs {
		dest = append(dest, &attrs[i])
	}
	dest = append(dest, &lastUpdated, &createdAt)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, company.ErrCompanyNotFound
		}
		return nil, err
	}

	for i, f := range company.AllFields {
		if attrs[i].Valid {
			v := attrs[i].String
			rec.Set(f, &v)
		}
	}
	rec.LastUpdated = lastUpdated
	rec.CreatedAt = createdAt
	return &rec, nil
}

func translateCompanyPgError(err error) error {
	code, _, ok := pgErrorCode(err)
	if !ok {
		return err
	}
	switch code {
	case uniqueViolationCode:
		return company.ErrCodeAlreadyExists
	case invalidTextRepresentationCode:
		return company.ErrCompanyNotFound
	}
	return err
}

func isKnownField(f company.Field) bool {
	for _, known := range company.AllFields {
		if f == known {
			return true
		}
	}
	return false
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
