package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/config"
	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/events"
	"github.com/spec-kit/doubt-service/internal/lifecycle"
	"github.com/spec-kit/doubt-service/internal/observability"
	"github.com/spec-kit/doubt-service/internal/realtime"
	"github.com/spec-kit/doubt-service/internal/repository"
)

const (
	messageNotificationTitle = "New Message"
	badgeNotificationTitle   = "Badge Earned"
)

// NotificationService stores notifications and pushes them to the recipient's feed.
type NotificationService struct {
	repo       repository.NotificationRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
	fanout     fanout
	clock      Clock
}

// NewNotificationService creates the service.
func NewNotificationService(deps Dependencies, cfg config.NotificationConfig) *NotificationService {
	deps = deps.withDefaults()
	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	return &NotificationService{
		repo:       deps.Store.Notifications,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		cfg:        cfg,
		fanout:     newFanout(deps),
		clock:      deps.Clock,
	}
}

// Emit stores n and announces it. Callers treat a failure as best effort.
func (n *NotificationService) Emit(ctx context.Context, notification *domain.Notification) error {
	if notification.UserID == "" {
		return nil
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = n.clock()
	}
	err := n.repo.Create(ctx, notification)
	n.metrics.RecordNotification(string(notification.Type), err)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	n.fanout.publishChange(ctx, realtime.Change{
		Kind:     realtime.ChangeNotificationAdded,
		Topic:    realtime.UserTopic(notification.UserID),
		UserID:   notification.UserID,
		RecordID: notification.ID,
	})
	event := events.Event{
		Type:  events.EventNotificationCreated,
		Actor: events.Actor{Role: domain.RoleSystem},
		Payload: events.NotificationCreatedPayload{
			NotificationID: notification.ID,
			RecipientID:    notification.UserID,
			Type:           notification.Type,
			Title:          notification.Title,
		},
	}
	if notification.DoubtID != nil {
		event.DoubtID = *notification.DoubtID
	}
	n.fanout.publishEvent(ctx, event)
	return nil
}

// EmitNotice stores the status change notice a transition produced.
func (n *NotificationService) EmitNotice(ctx context.Context, notice *lifecycle.Notice) error {
	if notice == nil {
		return nil
	}
	doubtID := notice.DoubtID
	label := notice.StatusLabel
	return n.Emit(ctx, &domain.Notification{
		UserID:      notice.RecipientID,
		DoubtID:     &doubtID,
		Type:        domain.NotificationStatusChange,
		Title:       notice.Title,
		Message:     notice.Message,
		StatusLabel: &label,
	})
}

// emitBestEffort logs instead of returning the failure.
func (n *NotificationService) emitBestEffort(ctx context.Context, notification *domain.Notification) {
	if err := n.Emit(ctx, notification); err != nil {
		n.logger.Warn("notification not delivered",
			zap.String("recipient", notification.UserID),
			zap.String("type", string(notification.Type)),
			zap.Error(err))
	}
}

// List returns the newest notifications for the actor. limit falls back to the page size.
func (n *NotificationService) List(ctx context.Context, actor domain.Actor, limit int) ([]domain.Notification, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = n.cfg.PageSize
	}
	list, err := n.repo.ListByUser(ctx, actor.UserID, limit)
	if err != nil {
		return nil, storeError(err, "notification", "")
	}
	return list, nil
}

// UnreadCount returns how many notifications the actor has not read.
func (n *NotificationService) UnreadCount(ctx context.Context, actor domain.Actor) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	count, err := n.repo.UnreadCount(ctx, actor.UserID)
	if err != nil {
		return 0, storeError(err, "notification", "")
	}
	return count, nil
}

// MarkRead flags one of the actor's notifications as read.
func (n *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if err := n.repo.MarkRead(ctx, actor.UserID, id); err != nil {
		return storeError(err, "notification", id)
	}
	n.fanout.publishChange(ctx, realtime.Change{
		Kind:     realtime.ChangeNotificationsReads,
		Topic:    realtime.UserTopic(actor.UserID),
		UserID:   actor.UserID,
		RecordID: id,
	})
	return nil
}

// MarkAllRead flags all of the actor's notifications as read.
func (n *NotificationService) MarkAllRead(ctx context.Context, actor domain.Actor) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	count, err := n.repo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, storeError(err, "notification", "")
	}
	if count > 0 {
		n.fanout.publishChange(ctx, realtime.Change{
			Kind:   realtime.ChangeNotificationsReads,
			Topic:  realtime.UserTopic(actor.UserID),
			UserID: actor.UserID,
		})
	}
	return count, nil
}

// RegisterHandlers subscribes to events and logs them.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventDoubtCreated, n.logEvent("DoubtCreated"))
	n.dispatcher.Subscribe(events.EventDoubtStatusChanged, n.logEvent("DoubtStatusChanged"))
	n.dispatcher.Subscribe(events.EventDoubtAssigned, n.logEvent("DoubtAssigned"))
	n.dispatcher.Subscribe(events.EventDoubtPriorityChanged, n.logEvent("DoubtPriorityChanged"))
	n.dispatcher.Subscribe(events.EventDoubtResponseAdded, n.logEvent("DoubtResponseAdded"))
	n.dispatcher.Subscribe(events.EventNotificationCreated, n.logEvent("NotificationCreated"))
	n.dispatcher.Subscribe(events.EventBadgeAwarded, n.logEvent("BadgeAwarded"))
}

func (n *NotificationService) logEvent(name string) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		n.logger.Info(name,
			zap.String("event_id", event.ID),
			zap.String("doubt_id", event.DoubtID),
			zap.String("actor_role", string(event.Actor.Role)),
			zap.Any("payload", event.Payload))
		return nil
	}
}

func messageNotification(recipient string, d *domain.Doubt) *domain.Notification {
	doubtID := d.ID
	return &domain.Notification{
		UserID:  recipient,
		DoubtID: &doubtID,
		Type:    domain.NotificationMessage,
		Title:   messageNotificationTitle,
		Message: "New message in doubt: " + d.Title,
	}
}

func badgeNotification(recipient string, badge *domain.Badge, doubtID *string) *domain.Notification {
	return &domain.Notification{
		UserID:  recipient,
		DoubtID: doubtID,
		Type:    domain.NotificationBadge,
		Title:   badgeNotificationTitle,
		Message: fmt.Sprintf("You earned the \"%s\" badge", strings.TrimSpace(badge.Name)),
	}
}
