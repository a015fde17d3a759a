package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/api/dto"
	httptransport "github.com/spec-kit/doubt-service/internal/api/http"
	"github.com/spec-kit/doubt-service/internal/api/http/handlers"
	"github.com/spec-kit/doubt-service/internal/app"
	"github.com/spec-kit/doubt-service/internal/auth"
	"github.com/spec-kit/doubt-service/internal/config"
	"github.com/spec-kit/doubt-service/internal/observability"
	"github.com/spec-kit/doubt-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer rt.Close()

	svc := rt.Services
	worker.StartNotificationWorker(svc.Notifications)

	sweeper := worker.NewSweepWorker(svc.Sweeps, worker.NewRedisLocker(rt.Redis.Handle()),
		cfg.Lifecycle.SweepInterval, cfg.Lifecycle.SweepLockTTL, logger)
	go sweeper.Start(ctx)

	var keys httptransport.KeyStore = httptransport.NewMemoryKeyStore()
	if client := rt.Redis.Handle(); client != nil {
		keys = httptransport.NewRedisKeyStore(client, cfg.App.Name+":idem:")
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, rt.Store.Roles)
	validator := dto.NewValidator()

	checks := map[string]handlers.Check{"store": rt.Store.Ping}
	if rt.Redis.Handle() != nil {
		checks["redis"] = rt.Redis.Ping
	}
	if rt.NATS != nil && rt.NATS.Conn != nil {
		checks["nats"] = rt.NATS.Ping
	}

	fiberApp := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(fiberApp, logger, rt.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(fiberApp, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Doubts:         handlers.NewDoubtsHandler(svc.Doubts, svc.Chat, validator),
		Notifications:  handlers.NewNotificationsHandler(svc.Notifications),
		Catalog:        handlers.NewCatalogHandler(svc.Catalog, svc.Badges, validator),
		Streams:        handlers.NewStreamHandler(rt.Broker, svc.Doubts, cfg.Realtime.Heartbeat, logger, rt.Metrics),
		AuthMiddleware: authMiddleware,
		Metrics:        rt.Metrics,
		Idempotency:    keys,
		IdempotencyTTL: cfg.App.IdempotencyTTL,
	})

	go func() {
		if err := fiberApp.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := fiberApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
