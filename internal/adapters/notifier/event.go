package notifier

import (
	"encoding/json"
	"time"

	"github.com/ogurasousui/company-registry/internal/core/subscription"
)

// Event は Redis と Kafka へ送る通知のペイロードです。
type Event struct {
	Recipient   string    `json:"recipient"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	CompanyID   string    `json:"company_id"`
	CompanyCode string    `json:"company_code"`
	SentAt      time.Time `json:"sent_at"`
}

func encodeEvent(msg subscription.Message, now time.Time) ([]byte, error) {
	return json.Marshal(Event{
		Recipient:   msg.Recipient,
		Subject:     msg.Subject,
		Body:        msg.Body,
		CompanyID:   msg.CompanyID,
		CompanyCode: msg.CompanyCode,
		SentAt:      now.UTC(),
	})
}
