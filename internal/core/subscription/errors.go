package subscription

import "errors"

var (
	// ErrAlreadySubscribed は同じユーザーが同じ会社を既に購読している場合に返却されます。
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrSubscriptionNotFound は購読が存在しない場合に返却されます。
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
