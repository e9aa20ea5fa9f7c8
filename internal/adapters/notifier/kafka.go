package notifier

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
)

type recordProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaNotifier は通知を JSON として Kafka トピックへ produce します。
// 同じ会社の通知が同一パーティションに並ぶよう、会社コードをキーにします。
type KafkaNotifier struct {
	producer recordProducer
	topic    string
	clock    company.Clock
}

// NewKafkaNotifier は KafkaNotifier を生成します。
func NewKafkaNotifier(producer recordProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, clock: company.RealClock{}}
}

// Send は通知を一件 produce し、ブローカーの確認を待ちます。
func (n *KafkaNotifier) Send(ctx context.Context, msg subscription.Message) error {
	payload, err := encodeEvent(msg, n.clock.Now())
	if err != nil {
		return fmt.Errorf("notifier: encode event: %w", err)
	}

	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(msg.CompanyCode),
		Value: payload,
	}
	if err := n.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("notifier: kafka produce to %s: %w", n.topic, err)
	}
	return nil
}
