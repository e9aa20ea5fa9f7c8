package subscription

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/user"
)

// Service は購読の登録・解除と、更新時の購読者への通知を扱います。
type Service struct {
	subs      Repository
	companies company.Repository
	users     user.Repository
	notifier  Notifier
	tx        company.TransactionManager
	clock     company.Clock
	logger    *slog.Logger
	metrics   Metrics
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

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService は Service を生成します。
func NewService(subs Repository, companies company.Repository, users user.Repository, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		subs:      subs,
		companies: companies,
		users:     users,
		notifier:  notifier,
		tx:        company.NoopTransactionManager{},
		clock:     company.RealClock{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe は userID のユーザーに code の会社の更新通知を購読させます。
func (s *Service) Subscribe(ctx context.Context, userID, code string) (*Subscription, error) {
	code, err := company.NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	var created *Subscription
	err = s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		c, err := s.companies.FindByCode(txCtx, code)
		if err != nil {
			return err
		}
		if _, err := s.users.FindByID(txCtx, userID); err != nil {
			return err
		}

		exists, err := s.subs.Exists(txCtx, userID, c.ID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadySubscribed
		}

		created, err = s.subs.Add(txCtx, &Subscription{
			UserID:    userID,
			CompanyID: c.ID,
			CreatedAt: s.clock.Now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Unsubscribe は購読を解除します。
func (s *Service) Unsubscribe(ctx context.Context, userID, code string) error {
	code, err := company.NormalizeCode(code)
	if err != nil {
		return err
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		c, err := s.companies.FindByCode(txCtx, code)
		if err != nil {
			if errors.Is(err, company.ErrCompanyNotFound) {
				return ErrSubscriptionNotFound
			}
			return err
		}
		return s.subs.Remove(txCtx, userID, c.ID)
	})
}

// NotifySubscribers は companyID の会社の購読者全員に更新通知を送ります。
// 会社が存在しない場合は何もしません。個々の配送失敗はログに残し、残りの購読者への配送を続けます。
func (s *Service) NotifySubscribers(ctx context.Context, companyID string) (DeliveryReport, error) {
	var (
		record      *company.Record
		subscribers []Subscriber
	)
	err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		var err error
		record, err = s.companies.FindByID(txCtx, companyID)
		if err != nil {
			return err
		}
		subscribers, err = s.subs.SubscribersOf(txCtx, companyID)
		return err
	})
	if errors.Is(err, company.ErrCompanyNotFound) {
		s.logger.DebugContext(ctx, "skip notification for missing company", "company_id", companyID)
		return DeliveryReport{}, nil
	}
	if err != nil {
		return DeliveryReport{}, err
	}

	report := DeliveryReport{Recipients: len(subscribers)}
	for _, sub := range subscribers {
		if err := s.deliver(ctx, record, sub); err != nil {
			report.Failed++
			s.logger.WarnContext(ctx, "notification delivery failed",
				"company_id", companyID, "code", record.Code, "user_id", sub.UserID, "err", err)
			s.observe(false)
			continue
		}
		report.Delivered++
		s.observe(true)
	}

	s.logger.InfoContext(ctx, "subscribers notified",
		"company_id", companyID, "code", record.Code,
		"recipients", report.Recipients, "delivered", report.Delivered, "failed", report.Failed)
	return report, nil
}

func (s *Service) deliver(ctx context.Context, record *company.Record, sub Subscriber) error {
	username := sub.Name
	if username == "" {
		username = sub.Email
	}
	body, err := renderUpdate(updateView{
		Username:    username,
		CompanyName: record.DisplayName(),
		CompanyCode: record.Code,
	})
	if err != nil {
		return err
	}
	return s.notifier.Send(ctx, Message{
		Recipient:   sub.Email,
		Subject:     Subject,
		Body:        body,
		CompanyID:   record.ID,
		CompanyCode: record.Code,
	})
}

func (s *Service) observe(delivered bool) {
	if s.metrics != nil {
		s.metrics.ObserveNotification(delivered)
	}
}
