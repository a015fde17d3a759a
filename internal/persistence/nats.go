package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/config"
)

// NATS wraps a nats connection. Conn is nil when no URL is configured.
type NATS struct {
	Conn *nats.Conn
}

// NewNATS connects to the configured NATS server with reconnect handlers that log state changes.
func NewNATS(cfg config.NATSConfig, logger *zap.Logger) (*NATS, error) {
	if cfg.URL == "" {
		return &NATS{}, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	logger.Info("connected to nats", zap.String("url", conn.ConnectedUrl()))
	return &NATS{Conn: conn}, nil
}

// Ping flushes the connection to verify the server round trip.
func (n *NATS) Ping(ctx context.Context) error {
	if n == nil || n.Conn == nil {
		return errors.New("nats connection not configured")
	}
	return n.Conn.FlushWithContext(ctx)
}

// Close drains and closes the connection.
func (n *NATS) Close() {
	if n != nil && n.Conn != nil {
		_ = n.Conn.Drain()
	}
}
