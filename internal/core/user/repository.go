package user

import "context"

// Repository はユーザーの永続化を行います。
// 見つからない場合は ErrUserNotFound、メールアドレスの一意制約違反は ErrEmailAlreadyExists を返します。
type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}
