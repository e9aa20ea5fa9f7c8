package user

import (
	"net/mail"
	"strings"
	"time"
)

// User は会社レコードの更新通知を購読する利用者です。Email は小文字に正規化済みです。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// newUser は入力を正規化し、保存前の User を組み立てます。
func newUser(in CreateUserInput, now time.Time) (*User, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	name := strings.Join(strings.Fields(in.Name), " ")
	if name == "" {
		return nil, ErrInvalidName
	}
	return &User{Email: email, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// NormalizeEmail は表示名なしの素のアドレスのみを受け付け、小文字にして返します。
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
