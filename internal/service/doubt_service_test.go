package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/events"
	"github.com/spec-kit/doubt-service/internal/lifecycle"
	"github.com/spec-kit/doubt-service/internal/realtime"
	"github.com/spec-kit/doubt-service/internal/repository"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

func TestCreateDoubt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var created []events.Event
	h.dispatcher.Subscribe(events.EventDoubtCreated, func(_ context.Context, e events.Event) error {
		created = append(created, e)
		return nil
	})

	d, err := h.doubts.CreateDoubt(ctx, student, DoubtCreateInput{
		Title:       "  Pointers  ",
		Description: " what is a nil map ",
		Attachments: []AttachmentInput{{FileName: "trace.txt", FileType: "text/plain", FileURL: "https://files/trace.txt"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, "Pointers", d.Title)
	assert.Equal(t, domain.DoubtStatusSubmitted, d.Status)
	assert.Equal(t, h.clock.now.Add(48*time.Hour), d.SLADeadline)
	require.Len(t, created, 1)
	assert.Equal(t, d.ID, created[0].DoubtID)

	detail, err := h.doubts.GetDoubt(ctx, student, d.ID)
	require.NoError(t, err)
	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, student.UserID, detail.Attachments[0].UploadedBy)
	assert.Empty(t, detail.AllowedActions)
}

func TestCreateDoubtRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	unknown := "missing-topic"

	tests := []struct {
		name  string
		actor domain.Actor
		input DoubtCreateInput
		code  string
	}{
		{"support cannot submit", support, DoubtCreateInput{Title: "a", Description: "b"}, apperrors.CodeForbidden},
		{"blank title", student, DoubtCreateInput{Title: "  ", Description: "b"}, apperrors.CodeValidationFailed},
		{"unknown topic", student, DoubtCreateInput{Title: "a", Description: "b", TopicID: &unknown}, apperrors.CodeValidationFailed},
		{"anonymous", domain.Actor{}, DoubtCreateInput{Title: "a", Description: "b"}, apperrors.CodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.doubts.CreateDoubt(ctx, tt.actor, tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestGetDoubtAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	_, err := h.doubts.GetDoubt(ctx, other, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	detail, err := h.doubts.GetDoubt(ctx, support, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []lifecycle.Action{lifecycle.ActionStartProgress}, detail.AllowedActions)

	_, err = h.doubts.GetDoubt(ctx, support, "00000000-0000-0000-0000-000000000000")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestListDoubtsScoping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mine := h.submit(t)
	_, err := h.doubts.CreateDoubt(ctx, other, DoubtCreateInput{Title: "Other", Description: "someone else"})
	require.NoError(t, err)

	list, err := h.doubts.ListDoubts(ctx, student, DoubtListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	all, err := h.doubts.ListDoubts(ctx, support, DoubtListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = h.doubts.StartProgress(ctx, support, mine.ID)
	require.NoError(t, err)

	assigned, err := h.doubts.ListDoubts(ctx, support, DoubtListFilter{AssignedToMe: true})
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, mine.ID, assigned[0].ID)

	unassigned, err := h.doubts.ListDoubts(ctx, admin, DoubtListFilter{Unassigned: true})
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.NotEqual(t, mine.ID, unassigned[0].ID)
}

func TestFullLifecycleWithNotifications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	feed, cancel, err := h.broker.Subscribe(ctx, realtime.DoubtTopic(d.ID))
	require.NoError(t, err)
	defer cancel()

	started, err := h.doubts.StartProgress(ctx, support, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DoubtStatusInProgress, started.Status)
	require.NotNil(t, started.AssignedSupportID)
	assert.Equal(t, support.UserID, *started.AssignedSupportID)

	h.clock.Advance(time.Hour)
	resolved, err := h.doubts.MarkResolved(ctx, support, d.ID)
	require.NoError(t, err)
	require.NotNil(t, resolved.ResolvedAt)

	h.clock.Advance(time.Hour)
	closed, err := h.doubts.ConfirmClose(ctx, student, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DoubtStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	notes := h.notificationsFor(student.UserID)
	require.Len(t, notes, 2)
	assert.Equal(t, `Doubt "Recursion base case" status changed to In Progress`, notes[0].Message)
	assert.Equal(t, `Doubt "Recursion base case" status changed to Resolved`, notes[1].Message)
	assert.Equal(t, lifecycle.StatusChangeTitle, notes[1].Title)

	supportNotes := h.notificationsFor(support.UserID)
	require.Len(t, supportNotes, 1)
	assert.Equal(t, `Doubt "Recursion base case" status changed to Closed`, supportNotes[0].Message)

	var statuses []domain.DoubtStatus
	for i := 0; i < 3; i++ {
		select {
		case change := <-feed:
			statuses = append(statuses, change.Status)
		case <-time.After(time.Second):
			t.Fatal("expected realtime change")
		}
	}
	assert.Equal(t, []domain.DoubtStatus{domain.DoubtStatusInProgress, domain.DoubtStatusResolved, domain.DoubtStatusClosed}, statuses)
}

func TestGuardViolationDoesNotWrite(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	_, err := h.doubts.ConfirmClose(ctx, student, d.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGuardViolation))

	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, string(lifecycle.GuardInvalidStatus), de.Details["reason_code"])

	_, err = h.doubts.MarkResolved(ctx, student, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	assert.Equal(t, domain.DoubtStatusSubmitted, h.get(t, d.ID).Status)
	assert.Empty(t, h.store.Notifications())
}

func TestReopenWindowAndLimit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	_, err := h.doubts.StartProgress(ctx, support, d.ID)
	require.NoError(t, err)
	_, err = h.doubts.MarkResolved(ctx, support, d.ID)
	require.NoError(t, err)
	_, err = h.doubts.ConfirmClose(ctx, student, d.ID)
	require.NoError(t, err)

	h.clock.Advance(47 * time.Hour)
	reopened, err := h.doubts.Reopen(ctx, student, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DoubtStatusReopened, reopened.Status)
	assert.Equal(t, 1, reopened.ReopenedCount)
	assert.Nil(t, reopened.ClosedAt)

	_, err = h.doubts.MarkResolved(ctx, support, d.ID)
	require.NoError(t, err)
	_, err = h.doubts.ConfirmClose(ctx, student, d.ID)
	require.NoError(t, err)

	_, err = h.doubts.Reopen(ctx, student, d.ID)
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, string(lifecycle.GuardAlreadyReopened), de.Details["reason_code"])
	assert.Equal(t, "this doubt has already been reopened once", de.Message)
}

func TestReopenAfterWindowRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	closedAt := h.clock.now
	resolvedAt := closedAt.Add(-time.Hour)
	d := h.store.PutDoubt(domain.Doubt{
		StudentID:   student.UserID,
		Title:       "Old",
		Description: "old one",
		Status:      domain.DoubtStatusClosed,
		ResolvedAt:  &resolvedAt,
		ClosedAt:    &closedAt,
		SubmittedAt: closedAt.Add(-72 * time.Hour),
		SLADeadline: closedAt.Add(-24 * time.Hour),
	})

	h.clock.Advance(48*time.Hour + time.Minute)
	_, err := h.doubts.Reopen(ctx, student, d.ID)
	require.Error(t, err)
	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, string(lifecycle.GuardReopenWindowExpired), de.Details["reason_code"])
	assert.Equal(t, domain.DoubtStatusClosed, h.get(t, d.ID).Status)
}

func TestConcurrentTransitionLoserGetsStaleState(t *testing.T) {
	store := newHarness(t).store
	d := store.PutDoubt(domain.Doubt{
		StudentID:   student.UserID,
		Title:       "Race",
		Description: "two agents",
		Status:      domain.DoubtStatusSubmitted,
	})
	frozen := d

	repos := store.Repositories()
	repos.Doubts = staleReads{DoubtRepository: repos.Doubts, frozen: frozen}
	h := newHarnessWithStore(t, store, repos)
	ctx := context.Background()

	// Another agent already moved the doubt on.
	moved := d.Clone()
	moved.Status = domain.DoubtStatusInProgress
	store.PutDoubt(moved)

	_, err := h.doubts.StartProgress(ctx, support, d.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleState))
	assert.True(t, errors.Is(err, repository.ErrStaleWrite))
	assert.Empty(t, store.Notifications())
}

func TestReopenAfterConcurrentReopenCycleIsStale(t *testing.T) {
	store := newHarness(t).store
	closedAt := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	assignee := support.UserID
	d := store.PutDoubt(domain.Doubt{
		StudentID:         student.UserID,
		Title:             "Reopen race",
		Description:       "two tabs",
		Status:            domain.DoubtStatusClosed,
		AssignedSupportID: &assignee,
		ClosedAt:          &closedAt,
	})

	repos := store.Repositories()
	repos.Doubts = staleReads{DoubtRepository: repos.Doubts, frozen: d}
	h := newHarnessWithStore(t, store, repos)

	// Meanwhile the doubt was reopened, resolved and closed again.
	cycled := d.Clone()
	cycled.ReopenedCount = 1
	store.PutDoubt(cycled)

	_, err := h.doubts.Reopen(context.Background(), student, d.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleState))

	got, err := store.Repositories().Doubts.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DoubtStatusClosed, got.Status)
	assert.Equal(t, 1, got.ReopenedCount)
}

func TestTransitionDoesNotUndoConcurrentAssignment(t *testing.T) {
	store := newHarness(t).store
	assignee := support.UserID
	d := store.PutDoubt(domain.Doubt{
		StudentID:         student.UserID,
		Title:             "Assign race",
		Description:       "admin reassigns",
		Status:            domain.DoubtStatusInProgress,
		AssignedSupportID: &assignee,
	})

	repos := store.Repositories()
	repos.Doubts = staleReads{DoubtRepository: repos.Doubts, frozen: d}
	h := newHarnessWithStore(t, store, repos)

	reassigned := d.Clone()
	reassignedTo := "support-2"
	reassigned.AssignedSupportID = &reassignedTo
	store.PutDoubt(reassigned)

	_, err := h.doubts.MarkResolved(context.Background(), support, d.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStaleState))

	got, err := store.Repositories().Doubts.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedSupportID)
	assert.Equal(t, "support-2", *got.AssignedSupportID)
	assert.Equal(t, domain.DoubtStatusInProgress, got.Status)
}

func TestStoreFailureSurfacesUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	h.store.FailWrites = errors.New("connection reset")
	_, err := h.doubts.StartProgress(ctx, support, d.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnavailable))

	h.store.FailWrites = repository.ErrWriteRejected
	_, err = h.doubts.StartProgress(ctx, support, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))
}

func TestNotificationFailureDoesNotFailTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	h.store.FailNotifications = errors.New("notifications table locked")
	started, err := h.doubts.StartProgress(ctx, support, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DoubtStatusInProgress, started.Status)
	assert.Equal(t, domain.DoubtStatusInProgress, h.get(t, d.ID).Status)
	assert.Empty(t, h.store.Notifications())
}

func TestEscalateAndResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	_, err := h.doubts.Escalate(ctx, support, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	escalated, err := h.doubts.Escalate(ctx, admin, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DoubtStatusEscalated, escalated.Status)
	require.NotNil(t, escalated.EscalatedAt)

	resumed, err := h.doubts.Resume(ctx, support, d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DoubtStatusInProgress, resumed.Status)
	require.NotNil(t, resumed.AssignedSupportID)
	assert.Equal(t, support.UserID, *resumed.AssignedSupportID)
}

func TestClaimAndAssign(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	claimed, err := h.doubts.Claim(ctx, support, d.ID)
	require.NoError(t, err)
	require.NotNil(t, claimed.AssignedSupportID)
	assert.Equal(t, support.UserID, *claimed.AssignedSupportID)

	again, err := h.doubts.Claim(ctx, support, d.ID)
	require.NoError(t, err)
	assert.Equal(t, support.UserID, *again.AssignedSupportID)

	_, err = h.doubts.Assign(ctx, support, d.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	target := student.UserID
	_, err = h.doubts.Assign(ctx, admin, d.ID, &target)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	cleared, err := h.doubts.Assign(ctx, admin, d.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedSupportID)
	assert.Nil(t, h.get(t, d.ID).AssignedSupportID)
}

func TestUpdatePriority(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)
	p := 2

	_, err := h.doubts.UpdatePriority(ctx, student, d.ID, &p)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	updated, err := h.doubts.UpdatePriority(ctx, support, d.ID, &p)
	require.NoError(t, err)
	require.NotNil(t, updated.Priority)
	assert.Equal(t, 2, *h.get(t, d.ID).Priority)
}
