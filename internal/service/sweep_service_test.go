package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/lifecycle"
)

func (h *harness) resolvedAt(t *testing.T, at time.Time) domain.Doubt {
	t.Helper()
	supportID := support.UserID
	return h.store.PutDoubt(domain.Doubt{
		StudentID:         student.UserID,
		AssignedSupportID: &supportID,
		Title:             "Sorting",
		Description:       "stable sort",
		Status:            domain.DoubtStatusResolved,
		ResolvedAt:        &at,
		SubmittedAt:       at.Add(-time.Hour),
		UpdatedAt:         at,
		SLADeadline:       at.Add(47 * time.Hour),
	})
}

func TestAutoCloseSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := h.clock.now

	due := h.resolvedAt(t, now.Add(-48*time.Hour))
	notDue := h.resolvedAt(t, now.Add(-47*time.Hour))

	report, err := h.sweeps.AutoCloseSweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{Sweep: SweepAutoClose, Scanned: 1, Applied: 1}, report)

	closed := h.get(t, due.ID)
	assert.Equal(t, domain.DoubtStatusClosedAuto, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, now, *closed.ClosedAt)
	assert.Equal(t, domain.DoubtStatusResolved, h.get(t, notDue.ID).Status)

	notes := h.notificationsFor(student.UserID)
	require.Len(t, notes, 1)
	assert.Equal(t, `Doubt "Sorting" status changed to Auto-Closed`, notes[0].Message)

	again, err := h.sweeps.AutoCloseSweep(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, again.Applied)
	assert.Len(t, h.store.Notifications(), 1)
}

func TestAutoCloseSweepSkipsStaleCandidate(t *testing.T) {
	h := newHarness(t)
	now := h.clock.now
	d := h.resolvedAt(t, now.Add(-50*time.Hour))

	// Candidate list says resolved but the student closed it in the meantime.
	closedAt := now.Add(-time.Minute)
	moved := d.Clone()
	moved.Status = domain.DoubtStatusClosed
	moved.ClosedAt = &closedAt
	candidates := []domain.Doubt{d}
	h.store.PutDoubt(moved)

	report := h.sweeps.run(context.Background(), SweepAutoClose, lifecycle.ActionAutoClose, candidates, now)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Applied)
	assert.Equal(t, domain.DoubtStatusClosed, h.get(t, d.ID).Status)
}

func TestEscalationSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	report, err := h.sweeps.EscalationSweep(ctx, h.clock.now.Add(47*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)

	later := h.clock.now.Add(49 * time.Hour)
	report, err = h.sweeps.EscalationSweep(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)

	escalated := h.get(t, d.ID)
	assert.Equal(t, domain.DoubtStatusEscalated, escalated.Status)
	require.NotNil(t, escalated.EscalatedAt)

	_, err = h.doubts.Resume(ctx, support, d.ID)
	require.NoError(t, err)
	report, err = h.sweeps.EscalationSweep(ctx, later.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.Scanned, "a doubt escalates at most once")
}

func TestEscalationSweepDisabled(t *testing.T) {
	h := newHarness(t)
	h.sweeps = NewSweepService(h.deps, h.doubts, SweepOptions{EscalationEnabled: false})
	d := h.submit(t)

	reports, err := h.sweeps.RunAll(context.Background(), h.clock.now.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Zero(t, reports[1].Scanned)
	assert.Equal(t, domain.DoubtStatusSubmitted, h.get(t, d.ID).Status)
}
