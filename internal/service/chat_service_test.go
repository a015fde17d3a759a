package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/domain"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

func TestStaffReplyStartsProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	resp, err := h.chat.PostResponse(ctx, support, d.ID, domain.ResponseTypeText, "  check your base case  ")
	require.NoError(t, err)
	assert.Equal(t, "check your base case", resp.Text)
	assert.Equal(t, domain.RoleSupport, resp.ResponderRole)

	stored := h.get(t, d.ID)
	assert.Equal(t, domain.DoubtStatusInProgress, stored.Status)
	require.NotNil(t, stored.AssignedSupportID)
	assert.Equal(t, support.UserID, *stored.AssignedSupportID)

	notes := h.notificationsFor(student.UserID)
	require.Len(t, notes, 2)
	assert.Equal(t, domain.NotificationStatusChange, notes[0].Type)
	assert.Equal(t, domain.NotificationMessage, notes[1].Type)
	assert.Equal(t, "New message in doubt: Recursion base case", notes[1].Message)
}

func TestStudentReplyNotifiesAssignee(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	_, err := h.chat.PostResponse(ctx, student, d.ID, "", "anyone there?")
	require.NoError(t, err)
	assert.Empty(t, h.store.Notifications(), "nobody is assigned yet")

	_, err = h.doubts.StartProgress(ctx, support, d.ID)
	require.NoError(t, err)
	_, err = h.chat.PostResponse(ctx, student, d.ID, domain.ResponseTypeText, "thanks")
	require.NoError(t, err)

	notes := h.notificationsFor(support.UserID)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationMessage, notes[0].Type)

	thread, err := h.chat.ListResponses(ctx, student, d.ID)
	require.NoError(t, err)
	require.Len(t, thread, 2)
	assert.Equal(t, "anyone there?", thread[0].Text)
}

func TestChatRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)

	_, err := h.chat.PostResponse(ctx, other, d.ID, domain.ResponseTypeText, "hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = h.chat.PostResponse(ctx, student, d.ID, domain.ResponseTypeText, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = h.chat.PostResponse(ctx, student, d.ID, domain.ResponseType("video"), "x")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = h.chat.ListResponses(ctx, other, d.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestChatClosedOnClosedDoubt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.submit(t)
	for _, step := range []func() (*domain.Doubt, error){
		func() (*domain.Doubt, error) { return h.doubts.StartProgress(ctx, support, d.ID) },
		func() (*domain.Doubt, error) { return h.doubts.MarkResolved(ctx, support, d.ID) },
		func() (*domain.Doubt, error) { return h.doubts.ConfirmClose(ctx, student, d.ID) },
	} {
		_, err := step()
		require.NoError(t, err)
	}

	_, err := h.chat.PostResponse(ctx, student, d.ID, domain.ResponseTypeText, "one more thing")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeGuardViolation))
	assert.Equal(t, "chat is closed", apperrors.ToDomainError(err).Message)

	thread, err := h.chat.ListResponses(ctx, student, d.ID)
	require.NoError(t, err)
	assert.Empty(t, thread)
}
