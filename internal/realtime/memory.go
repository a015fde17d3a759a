package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type memorySub struct {
	ch   chan Change
	done chan struct{}
	once sync.Once
}

func (s *memorySub) close() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}

// MemoryBroker delivers changes within the process.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySub]struct{}
	buffer int
	logger *zap.Logger
	// watchers tracks the goroutines that release a subscription when its context ends.
	watchers sync.WaitGroup
}

// NewMemoryBroker creates a broker whose subscriber channels hold buffer changes.
// A subscriber that falls behind loses changes instead of blocking publishers.
func NewMemoryBroker(buffer int, logger *zap.Logger) *MemoryBroker {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBroker{subs: make(map[string]map[*memorySub]struct{}), buffer: buffer, logger: logger}
}

func (b *MemoryBroker) Publish(_ context.Context, change Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[change.Topic] {
		select {
		case sub.ch <- change:
		default:
			b.logger.Warn("dropping change for slow subscriber", zap.String("topic", change.Topic))
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan Change, func(), error) {
	sub := &memorySub{ch: make(chan Change, b.buffer), done: make(chan struct{})}
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySub]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if set := b.subs[topic]; set != nil {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, topic)
			}
		}
		b.mu.Unlock()
		sub.close()
	}
	b.watchers.Add(1)
	go func() {
		defer b.watchers.Done()
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()
	return sub.ch, cancel, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]map[*memorySub]struct{})
	b.mu.Unlock()
	for _, set := range subs {
		for sub := range set {
			sub.close()
		}
	}
	b.watchers.Wait()
	return nil
}
