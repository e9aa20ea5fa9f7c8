package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/ogurasousui/company-registry/internal/core/subscription"
	"github.com/ogurasousui/company-registry/internal/platform/config"
)

// New は設定されたドライバーの Notifier を生成します。
// 返却される close 関数はドライバーが保持する接続を閉じます。
func New(ctx context.Context, cfg config.NotifierConfig, logger *slog.Logger) (subscription.Notifier, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case "", config.NotifierDriverLog:
		return NewLogNotifier(logger), noop, nil
	case config.NotifierDriverSMTP:
		return NewSMTPNotifier(cfg.SMTP), noop, nil
	case config.NotifierDriverRedis:
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("notifier: parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("notifier: redis ping: %w", err)
		}
		return NewRedisNotifier(client, cfg.Redis.Channel), client.Close, nil
	case config.NotifierDriverKafka:
		client, err := kgo.NewClient(
			kgo.SeedBrokers(cfg.Kafka.Brokers...),
			kgo.DefaultProduceTopic(cfg.Kafka.Topic),
			kgo.AllowAutoTopicCreation(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("notifier: kafka client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("notifier: kafka ping: %w", err)
		}
		return NewKafkaNotifier(client, cfg.Kafka.Topic), func() error {
			client.Close()
			return nil
		}, nil
	default:
		return nil, nil, fmt.Errorf("notifier: unsupported driver %q", cfg.Driver)
	}
}
