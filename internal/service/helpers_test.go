package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/config"
	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/events"
	"github.com/spec-kit/doubt-service/internal/lifecycle"
	"github.com/spec-kit/doubt-service/internal/realtime"
	"github.com/spec-kit/doubt-service/internal/repository"
	"github.com/spec-kit/doubt-service/internal/repository/memstore"
)

var (
	student = domain.Actor{UserID: "student-1", Role: domain.RoleStudent}
	other   = domain.Actor{UserID: "student-2", Role: domain.RoleStudent}
	support = domain.Actor{UserID: "support-1", Role: domain.RoleSupport}
	admin   = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	store         *memstore.Store
	clock         *fakeClock
	broker        *realtime.MemoryBroker
	dispatcher    events.Dispatcher
	deps          Dependencies
	notifications *NotificationService
	doubts        *DoubtService
	chat          *ChatService
	sweeps        *SweepService
	catalog       *CatalogService
	badges        *BadgeService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memstore.New()
	return newHarnessWithStore(t, store, store.Repositories())
}

func newHarnessWithStore(t *testing.T, store *memstore.Store, repos repository.Store) *harness {
	t.Helper()
	start, err := time.Parse(time.RFC3339, "2024-03-01T09:00:00Z")
	require.NoError(t, err)
	clock := &fakeClock{now: start}
	broker := realtime.NewMemoryBroker(16, nil)
	t.Cleanup(func() { _ = broker.Close() })

	h := &harness{store: store, clock: clock, broker: broker, dispatcher: events.NewInMemoryDispatcher()}
	h.deps = Dependencies{
		Store:      repos,
		Engine:     lifecycle.New(lifecycle.DefaultPolicy()),
		Dispatcher: h.dispatcher,
		Broker:     broker,
		Clock:      clock.Now,
	}
	h.notifications = NewNotificationService(h.deps, config.NotificationConfig{PageSize: 10})
	h.doubts = NewDoubtService(h.deps, h.notifications)
	h.chat = NewChatService(h.deps, h.doubts, h.notifications)
	h.sweeps = NewSweepService(h.deps, h.doubts, SweepOptions{EscalationEnabled: true})
	h.catalog = NewCatalogService(h.deps)
	h.badges = NewBadgeService(h.deps, h.notifications)

	ctx := context.Background()
	for _, a := range []domain.Actor{student, other, support, admin} {
		require.NoError(t, repos.Roles.Assign(ctx, &domain.RoleAssignment{UserID: a.UserID, Role: a.Role}))
	}
	return h
}

func (h *harness) submit(t *testing.T) *domain.Doubt {
	t.Helper()
	d, err := h.doubts.CreateDoubt(context.Background(), student, DoubtCreateInput{
		Title:       "Recursion base case",
		Description: "why does my function overflow the stack",
	})
	require.NoError(t, err)
	return d
}

func (h *harness) get(t *testing.T, id string) domain.Doubt {
	t.Helper()
	d, err := h.deps.Store.Doubts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return *d
}

func (h *harness) notificationsFor(userID string) []domain.Notification {
	var out []domain.Notification
	for _, n := range h.store.Notifications() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// staleReads serves a frozen copy of one doubt so the next write races a newer state.
type staleReads struct {
	repository.DoubtRepository
	frozen domain.Doubt
}

func (s staleReads) GetByID(ctx context.Context, id string) (*domain.Doubt, error) {
	if id == s.frozen.ID {
		out := s.frozen.Clone()
		return &out, nil
	}
	return s.DoubtRepository.GetByID(ctx, id)
}
