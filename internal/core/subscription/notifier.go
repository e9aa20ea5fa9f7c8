package subscription

import "context"

// Message は購読者一人に送る通知です。
type Message struct {
	Recipient   string
	Subject     string
	Body        string
	CompanyID   string
	CompanyCode string
}

// Notifier は通知の配送手段です。配送に失敗した場合はエラーを返します。
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Metrics は通知配送の計測点です。
type Metrics interface {
	ObserveNotification(delivered bool)
}
