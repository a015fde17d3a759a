// Package app assembles infrastructure and services for the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/config"
	"github.com/spec-kit/doubt-service/internal/events"
	"github.com/spec-kit/doubt-service/internal/lifecycle"
	"github.com/spec-kit/doubt-service/internal/observability"
	"github.com/spec-kit/doubt-service/internal/persistence"
	"github.com/spec-kit/doubt-service/internal/realtime"
	"github.com/spec-kit/doubt-service/internal/repository"
	"github.com/spec-kit/doubt-service/internal/repository/memstore"
	"github.com/spec-kit/doubt-service/internal/service"
)

// Services groups the application services.
type Services struct {
	Notifications *service.NotificationService
	Doubts        *service.DoubtService
	Chat          *service.ChatService
	Sweeps        *service.SweepService
	Catalog       *service.CatalogService
	Badges        *service.BadgeService
}

// Runtime owns connections and the service graph.
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Postgres *persistence.Postgres
	Redis    *persistence.Redis
	NATS     *persistence.NATS
	Store    repository.Store
	Broker   realtime.Broker
	Services Services
}

// Open connects to the configured backends and builds the services. Without
// a Postgres DSN the in-memory store is used.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Runtime, error) {
	rt := &Runtime{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics("doubts"),
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt.Postgres = pg
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				rt.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		rt.Store = repository.NewPostgresStore(pool)
	} else {
		logger.Warn("using in-memory store; data will not survive a restart")
		rt.Store = memstore.New().Repositories()
	}

	rt.Redis = persistence.NewRedis(cfg.Redis, logger)

	if cfg.Realtime.Backend == config.RealtimeNATS {
		rt.NATS, err = persistence.NewNATS(cfg.NATS, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	realtimeCfg := cfg.Realtime
	natsConn := natsHandle(rt.NATS)
	if realtimeCfg.Backend == config.RealtimeNATS {
		realtimeCfg.ChannelPrefix = cfg.NATS.SubjectPrefix
	}
	rt.Broker, err = realtime.New(realtimeCfg, rt.Redis.Handle(), natsConn, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	engine := lifecycle.New(lifecycle.Policy{
		SLAWindow:      cfg.Lifecycle.SLAWindow(),
		ReopenWindow:   cfg.Lifecycle.ReopenWindow(),
		AutoCloseAfter: cfg.Lifecycle.AutoCloseAfter(),
	})
	deps := service.Dependencies{
		Store:      rt.Store,
		Engine:     engine,
		Dispatcher: events.NewInMemoryDispatcher(),
		Broker:     rt.Broker,
		Logger:     logger,
		Metrics:    rt.Metrics,
		Clock:      func() time.Time { return time.Now().UTC() },
	}
	rt.Services.Notifications = service.NewNotificationService(deps, cfg.Notification)
	rt.Services.Doubts = service.NewDoubtService(deps, rt.Services.Notifications)
	rt.Services.Chat = service.NewChatService(deps, rt.Services.Doubts, rt.Services.Notifications)
	rt.Services.Sweeps = service.NewSweepService(deps, rt.Services.Doubts, service.SweepOptions{
		BatchSize:         cfg.Lifecycle.SweepBatchSize,
		EscalationEnabled: cfg.Lifecycle.EscalationEnabled,
	})
	rt.Services.Catalog = service.NewCatalogService(deps)
	rt.Services.Badges = service.NewBadgeService(deps, rt.Services.Notifications)
	return rt, nil
}

// Close releases every connection. Safe on a partially opened runtime.
func (rt *Runtime) Close() {
	if rt.Broker != nil {
		_ = rt.Broker.Close()
	}
	rt.NATS.Close()
	rt.Redis.Close()
	rt.Postgres.Close()
}
