package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/doubt-service/internal/realtime"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

func TestNotificationInbox(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	feed, cancel, err := h.broker.Subscribe(ctx, realtime.UserTopic(student.UserID))
	require.NoError(t, err)
	defer cancel()

	d := h.submit(t)
	<-feed // doubt created

	for i := 0; i < 12; i++ {
		h.clock.Advance(time.Minute)
		h.notifications.emitBestEffort(ctx, messageNotification(student.UserID, d))
	}

	select {
	case change := <-feed:
		assert.Equal(t, realtime.ChangeNotificationAdded, change.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected notification change")
	}

	list, err := h.notifications.List(ctx, student, 0)
	require.NoError(t, err)
	assert.Len(t, list, 10)
	assert.True(t, list[0].CreatedAt.After(list[9].CreatedAt), "newest first")

	count, err := h.notifications.UnreadCount(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	err = h.notifications.MarkRead(ctx, other, list[0].ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "only the recipient can mark it read")

	require.NoError(t, h.notifications.MarkRead(ctx, student, list[0].ID))
	count, err = h.notifications.UnreadCount(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 11, count)

	marked, err := h.notifications.MarkAllRead(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, int64(11), marked)
	count, err = h.notifications.UnreadCount(ctx, student)
	require.NoError(t, err)
	assert.Zero(t, count)
}
