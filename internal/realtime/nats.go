package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSBroker publishes changes on "<prefix>.<topic>" subjects.
type NATSBroker struct {
	conn   *nats.Conn
	prefix string
	buffer int
	logger *zap.Logger
}

// NewNATSBroker builds a broker over an established connection.
func NewNATSBroker(conn *nats.Conn, prefix string, buffer int, logger *zap.Logger) *NATSBroker {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSBroker{conn: conn, prefix: prefix, buffer: buffer, logger: logger}
}

func (b *NATSBroker) subject(topic string) string {
	if b.prefix == "" {
		return topic
	}
	return b.prefix + "." + topic
}

func (b *NATSBroker) Publish(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	payload, err := encode(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := b.conn.Publish(b.subject(change.Topic), payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (b *NATSBroker) Subscribe(ctx context.Context, topic string) (<-chan Change, func(), error) {
	out := make(chan Change, b.buffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	sub, err := b.conn.Subscribe(b.subject(topic), func(msg *nats.Msg) {
		change, err := decode(msg.Data)
		if err != nil {
			b.logger.Warn("discarding malformed change", zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- change:
		default:
			b.logger.Warn("dropping change for slow subscriber", zap.String("topic", topic))
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("nats subscribe: %w", err)
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			close(out)
			mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return out, cancel, nil
}

// Close is a no-op; the connection is owned by the caller.
func (b *NATSBroker) Close() error {
	return nil
}
