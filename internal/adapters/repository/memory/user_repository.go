package memory

import (
	"context"

	"github.com/ogurasousui/company-registry/internal/core/user"
)

// UserRepository はメモリ上の user.Repository 実装です。
type UserRepository struct {
	store *Store
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	var created user.User
	err := r.store.write(ctx, func(st *state) error {
		if _, exists := st.emailIndex[u.Email]; exists {
			return user.ErrEmailAlreadyExists
		}
		created = *u
		created.ID = r.store.newID()
		stored := created
		st.users[created.ID] = &stored
		st.emailIndex[created.Email] = created.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*user.User, error) {
	u, ok := r.store.read(ctx).users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	st := r.store.read(ctx)
	id, ok := st.emailIndex[email]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	out := *st.users[id]
	return &out, nil
}
