package postgres

import (
	"context"
	"time"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/core/user"
	pgdb "github.com/ogurasousui/company-registry/internal/platform/db/postgres"
)

const subscriptionUserForeignKey = "user_subscriptions_user_id_fkey"

// SubscriptionRepository は PostgreSQL を利用した購読関係の永続化実装です。
type SubscriptionRepository struct {
	pool pgdb.Queryer
}

// NewSubscriptionRepository は SubscriptionRepository を生成します。
func NewSubscriptionRepository(pool pgdb.Queryer) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Exists は購読の有無を返します。
func (r *SubscriptionRepository) Exists(ctx context.Context, userID, companyID string) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var exists bool
	err := exec.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM user_subscriptions WHERE user_id = $1 AND company_id = $2
        )
    `, userID, companyID).Scan(&exists)
	if err != nil {
		return false, translateSubscriptionPgError(err)
	}
	return exists, nil
}

// Add は購読を追加します。
func (r *SubscriptionRepository) Add(ctx context.Context, sub *subscription.Subscription) (*subscription.Subscription, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var (
		created   subscription.Subscription
		createdAt time.Time
	)
	err := exec.QueryRow(ctx, `
        INSERT INTO user_subscriptions (user_id, company_id, created_at)
        VALUES ($1, $2, $3)
        RETURNING id, user_id, company_id, created_at
    `, sub.UserID, sub.CompanyID, sub.CreatedAt).Scan(&created.ID, &created.UserID, &created.CompanyID, &createdAt)
	if err != nil {
		return nil, translateSubscriptionPgError(err)
	}
	created.CreatedAt = createdAt
	return &created, nil
}

// Remove は購読を削除します。
func (r *SubscriptionRepository) Remove(ctx context.Context, userID, companyID string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM user_subscriptions WHERE user_id = $1 AND company_id = $2`, userID, companyID)
	if err != nil {
		return translateSubscriptionPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

// SubscribersOf は companyID の購読者を購読順に返します。
func (r *SubscriptionRepository) SubscribersOf(ctx context.Context, companyID string) ([]subscription.Subscriber, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT u.id, u.email, u.name
          FROM user_subscriptions s
          JOIN users u ON u.id = s.user_id
         WHERE s.company_id = $1
         ORDER BY s.created_at ASC, s.id ASC
    `, companyID)
	if err != nil {
		return nil, translateSubscriptionPgError(err)
	}
	defer rows.Close()

	var subscribers []subscription.Subscriber
	for rows.Next() {
		var s subscription.Subscriber
		if err := rows.Scan(&s.UserID, &s.Email, &s.Name); err != nil {
			return nil, err
		}
		subscribers = append(subscribers, s)
	}
	if err := rows.Err(); err != nil {
		return nil, translateSubscriptionPgError(err)
	}
	return subscribers, nil
}

func translateSubscriptionPgError(err error) error {
	code, constraint, ok := pgErrorCode(err)
	if !ok {
		return err
	}
	switch code {
	case uniqueViolationCode:
		return subscription.ErrAlreadySubscribed
	case foreignKeyViolationCode:
		if constraint == subscriptionUserForeignKey {
			return user.ErrUserNotFound
		}
		return company.ErrCompanyNotFound
	case invalidTextRepresentationCode:
		return subscription.ErrSubscriptionNotFound
	}
	return err
}
