package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/repository/memstore"
	"github.com/spec-kit/doubt-service/internal/service"
)

type stubLocker struct {
	held     bool
	err      error
	released int
}

func (l *stubLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func() { l.held = false; l.released++ }, true, nil
}

func newSweeps(t *testing.T) (*memstore.Store, *service.SweepService) {
	t.Helper()
	store := memstore.New()
	deps := service.Dependencies{Store: store.Repositories()}
	doubts := service.NewDoubtService(deps, nil)
	return store, service.NewSweepService(deps, doubts, service.SweepOptions{EscalationEnabled: true})
}

func TestRunOnceClosesDueDoubts(t *testing.T) {
	store, sweeps := newSweeps(t)
	resolvedAt := time.Now().UTC().Add(-72 * time.Hour)
	d := store.PutDoubt(domain.Doubt{
		StudentID:   "student-1",
		Title:       "Maps",
		Description: "iteration order",
		Status:      domain.DoubtStatusResolved,
		ResolvedAt:  &resolvedAt,
		SLADeadline: resolvedAt.Add(time.Hour),
	})

	locker := &stubLocker{}
	w := NewSweepWorker(sweeps, locker, time.Minute, time.Minute, nil)
	require.True(t, w.RunOnce(context.Background()))
	assert.Equal(t, 1, locker.released)

	got, err := store.Repositories().Doubts.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DoubtStatusClosedAuto, got.Status)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	_, sweeps := newSweeps(t)

	held := &stubLocker{held: true}
	assert.False(t, NewSweepWorker(sweeps, held, time.Minute, 0, nil).RunOnce(context.Background()))

	broken := &stubLocker{err: errors.New("redis down")}
	assert.False(t, NewSweepWorker(sweeps, broken, time.Minute, 0, nil).RunOnce(context.Background()))

	assert.True(t, NewSweepWorker(sweeps, nil, time.Minute, 0, nil).RunOnce(context.Background()))
}

func TestStartStopsOnCancel(t *testing.T) {
	_, sweeps := newSweeps(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweepWorker(sweeps, nil, time.Hour, 0, nil).Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
