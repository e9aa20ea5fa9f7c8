package memory

import (
	"context"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/core/user"
)

// SubscriptionRepository はメモリ上の subscription.Repository 実装です。
type SubscriptionRepository struct {
	store *Store
}

func (r *SubscriptionRepository) Exists(ctx context.Context, userID, companyID string) (bool, error) {
	_, ok := r.store.read(ctx).subs[subKey{userID: userID, companyID: companyID}]
	return ok, nil
}

// Add は購読を追加します。存在しないユーザーや会社への購読は外部キー違反と同様に拒否します。
func (r *SubscriptionRepository) Add(ctx context.Context, sub *subscription.Subscription) (*subscription.Subscription, error) {
	var created subscription.Subscription
	err := r.store.write(ctx, func(st *state) error {
		if _, ok := st.users[sub.UserID]; !ok {
			return user.ErrUserNotFound
		}
		if _, ok := st.companies[sub.CompanyID]; !ok {
			return company.ErrCompanyNotFound
		}
		key := subKey{userID: sub.UserID, companyID: sub.CompanyID}
		if _, exists := st.subs[key]; exists {
			return subscription.ErrAlreadySubscribed
		}
		created = *sub
		created.ID = r.store.newID()
		stored := created
		st.subs[key] = &stored
		st.subOrder = append(st.subOrder, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *SubscriptionRepository) Remove(ctx context.Context, userID, companyID string) error {
	return r.store.write(ctx, func(st *state) error {
		key := subKey{userID: userID, companyID: companyID}
		if _, exists := st.subs[key]; !exists {
			return subscription.ErrSubscriptionNotFound
		}
		delete(st.subs, key)
		for i, k := range st.subOrder {
			if k == key {
				st.subOrder = append(st.subOrder[:i:i], st.subOrder[i+1:]...)
				break
			}
		}
		return nil
	})
}

// SubscribersOf は companyID の購読者を購読した順に返します。
func (r *SubscriptionRepository) SubscribersOf(ctx context.Context, companyID string) ([]subscription.Subscriber, error) {
	st := r.store.read(ctx)
	var out []subscription.Subscriber
	for _, key := range st.subOrder {
		if key.companyID != companyID {
			continue
		}
		u, ok := st.users[key.userID]
		if !ok {
			continue
		}
		out = append(out, subscription.Subscriber{UserID: u.ID, Email: u.Email, Name: u.Name})
	}
	return out, nil
}
