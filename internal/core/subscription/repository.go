package subscription

import "context"

// Repository は購読関係の永続化を行うインターフェースです。
type Repository interface {
	Exists(ctx context.Context, userID, companyID string) (bool, error)
	// Add は購読を追加します。重複時は ErrAlreadySubscribed を返します。
	Add(ctx context.Context, sub *Subscription) (*Subscription, error)
	Remove(ctx context.Context, userID, companyID string) error
	SubscribersOf(ctx context.Context, companyID string) ([]Subscriber, error)
}
