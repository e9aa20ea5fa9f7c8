package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ogurasousui/company-registry/internal/core/company"
)

// Service は購読者となるユーザーの登録と参照を扱います。
type Service struct {
	repo   Repository
	tx     company.TransactionManager
	clock  company.Clock
	logger *slog.Logger
}

// Option は Service の任意設定です。
type Option func(*Service)

func WithTransactionManager(tx company.TransactionManager) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
		}
	}
}

func WithClock(clock company.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		tx:     company.NoopTransactionManager{},
		clock:  company.RealClock{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUserInput はユーザー作成時の入力です。
type CreateUserInput struct {
	Email string
	Name  string
}

// CreateUser は新しいユーザーを作成します。重複確認と挿入は同じトランザクションで行います。
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	u, err := newUser(in, s.clock.Now())
	if err != nil {
		return nil, err
	}

	var created *User
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByEmail(txCtx, u.Email)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			return err
		}
		if existing != nil {
			return ErrEmailAlreadyExists
		}
		created, err = s.repo.Create(txCtx, u)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user created", "user_id", created.ID)
	return created, nil
}

// GetUser は ID でユーザーを取得します。
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}

	var found *User
	err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		var err error
		found, err = s.repo.FindByID(txCtx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
