package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/ogurasousui/company-registry/internal/core/user"
)

var userRowColumns = []string{"id", "email", "name", "created_at", "updated_at"}

func TestScanUser_NoRows(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...any) error {
		return pgx.ErrNoRows
	}}

	if _, err := scanUser(row); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTranslateUserPgError(t *testing.T) {
	t.Parallel()

	if !errors.Is(translateUserPgError(&pgconn.PgError{Code: uniqueViolationCode}), user.ErrEmailAlreadyExists) {
		t.Fatalf("expected unique violation to map to ErrEmailAlreadyExists")
	}
	if !errors.Is(translateUserPgError(&pgconn.PgError{Code: invalidTextRepresentationCode}), user.ErrUserNotFound) {
		t.Fatalf("expected malformed id to map to not found")
	}

	fkErr := &pgconn.PgError{Code: foreignKeyViolationCode}
	if translateUserPgError(fkErr) != error(fkErr) {
		t.Fatalf("unexpected translation for unrelated pg error")
	}
}

func TestUserRepository_Create(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	id := "0b7c1f5e-3a55-4a8e-9a8c-2d0f3c1b9e11"

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (email, name, created_at, updated_at)`)).
		WithArgs("alice@example.com", "Alice", now, now).
		WillReturnRows(pgxmock.NewRows(userRowColumns).AddRow(id, "alice@example.com", "Alice", now, now))

	created, err := repo.Create(context.Background(), &user.User{
		Email:     "alice@example.com",
		Name:      "Alice",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID != id || !created.CreatedAt.Equal(now) {
		t.Fatalf("unexpected user %+v", created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Create_DuplicateEmail(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("alice@example.com", "Alice", now, now).
		WillReturnError(&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "users_email_key"})

	_, err = repo.Create(context.Background(), &user.User{Email: "alice@example.com", Name: "Alice", CreatedAt: now, UpdatedAt: now})
	if !errors.Is(err, user.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestUserRepository_FindByID_MalformedSkipsQuery(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	if _, err := repo.FindByID(context.Background(), "user-1"); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}

func TestUserRepository_FindByEmail_NotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE email = $1 LIMIT 1`)).
		WithArgs("missing@example.com").
		WillReturnRows(pgxmock.NewRows(userRowColumns))

	if _, err := repo.FindByEmail(context.Background(), "missing@example.com"); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
