package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisChannelPrefix = "wallet:balance:"

// RedisTransport relays events over redis pub/sub, one channel per user.
type RedisTransport struct {
	client *redis.Client
}

func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client}
}

func (t *RedisTransport) Publish(ctx context.Context, evt BalanceEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode balance event: %w", err)
	}
	return t.client.Publish(ctx, redisChannelPrefix+evt.UserID, data).Err()
}

func (t *RedisTransport) Listen(ctx context.Context, deliver func(BalanceEvent)) error {
	pubsub := t.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to balance feed: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("balance feed channel closed")
			}
			var evt BalanceEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				logrus.WithField("channel", msg.Channel).Warn("dropping malformed balance event")
				continue
			}
			deliver(evt)
		}
	}
}
