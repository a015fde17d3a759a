package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker fans changes out over redis pub/sub so every replica sees them.
type RedisBroker struct {
	client *redis.Client
	prefix string
	buffer int
	logger *zap.Logger
}

// NewRedisBroker builds a broker publishing on "<prefix>:<topic>" channels.
func NewRedisBroker(client *redis.Client, prefix string, buffer int, logger *zap.Logger) *RedisBroker {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, prefix: prefix, buffer: buffer, logger: logger}
}

func (b *RedisBroker) channel(topic string) string {
	if b.prefix == "" {
		return topic
	}
	return b.prefix + ":" + topic
}

func (b *RedisBroker) Publish(ctx context.Context, change Change) error {
	payload, err := encode(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel(change.Topic), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, topic string) (<-chan Change, func(), error) {
	pubsub := b.client.Subscribe(ctx, b.channel(topic))
	// Receive blocks until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Change, b.buffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				change, err := decode([]byte(msg.Payload))
				if err != nil {
					b.logger.Warn("discarding malformed change", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- change:
				default:
					b.logger.Warn("dropping change for slow subscriber", zap.String("topic", topic))
				}
			}
		}
	}()
	return out, cancel, nil
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBroker) Close() error {
	return nil
}
