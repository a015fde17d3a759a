package realtime

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/config"
)

// New selects the backend named in cfg.
func New(cfg config.RealtimeConfig, rdb *redis.Client, nc *nats.Conn, logger *zap.Logger) (Broker, error) {
	switch cfg.Backend {
	case config.RealtimeMemory, "":
		return NewMemoryBroker(cfg.BufferSize, logger), nil
	case config.RealtimeRedis:
		if rdb == nil {
			return nil, errors.New("redis realtime backend requires a redis client")
		}
		return NewRedisBroker(rdb, cfg.ChannelPrefix, cfg.BufferSize, logger), nil
	case config.RealtimeNATS:
		if nc == nil {
			return nil, errors.New("nats realtime backend requires a nats connection")
		}
		return NewNATSBroker(nc, cfg.ChannelPrefix, cfg.BufferSize, logger), nil
	default:
		return nil, fmt.Errorf("unknown realtime backend %q", cfg.Backend)
	}
}
