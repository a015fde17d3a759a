package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

const readinessTimeout = 2 * time.Second

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	startedAt   time.Time
	checks      map[string]Check
}

// NewHealthHandler returns a new handler instance. checks maps a dependency name to its probe.
func NewHealthHandler(serviceName, version string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, startedAt: time.Now(), checks: checks}
}

func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "alive",
		"service":        h.serviceName,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Ready probes every dependency in parallel and answers 503 with the
// UNAVAILABLE envelope when any of them fails.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		status = make(map[string]any, len(h.checks))
		ready  = true
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				status[name] = err.Error()
				ready = false
				return
			}
			status[name] = "ok"
		}(name, check)
	}
	wg.Wait()

	if !ready {
		return errorutil.NewDomainError(errorutil.CodeUnavailable, "one or more dependencies unavailable", fiber.StatusServiceUnavailable, status)
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": status})
}
