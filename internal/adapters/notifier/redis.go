package notifier

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ogurasousui/company-registry/internal/core/company"
	"github.com/ogurasousui/company-registry/internal/core/subscription"
)

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisNotifier は通知を JSON として Redis チャンネルへ publish します。
type RedisNotifier struct {
	client  redisPublisher
	channel string
	clock   company.Clock
}

// NewRedisNotifier は RedisNotifier を生成します。
func NewRedisNotifier(client redisPublisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, clock: company.RealClock{}}
}

// Send は通知を一件 publish します。
func (n *RedisNotifier) Send(ctx context.Context, msg subscription.Message) error {
	payload, err := encodeEvent(msg, n.clock.Now())
	if err != nil {
		return fmt.Errorf("notifier: encode event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("notifier: redis publish to %s: %w", n.channel, err)
	}
	return nil
}
