package subscription

import "time"

// Subscription はユーザーと会社レコードの購読関係です。(UserID, CompanyID) の組は一意です。
type Subscription struct {
	ID        string
	UserID    string
	CompanyID string
	CreatedAt time.Time
}

// Subscriber は通知先となる購読者です。
type Subscriber struct {
	UserID string
	Email  string
	Name   string
}

// DeliveryReport は一回の通知ファンアウトの結果です。
type DeliveryReport struct {
	Recipients int
	Delivered  int
	Failed     int
}
