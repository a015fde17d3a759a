package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/events"
	"github.com/spec-kit/doubt-service/internal/lifecycle"
	"github.com/spec-kit/doubt-service/internal/observability"
	"github.com/spec-kit/doubt-service/internal/realtime"
	"github.com/spec-kit/doubt-service/internal/repository"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

// Dependencies bundles what every service needs.
type Dependencies struct {
	Store      repository.Store
	Engine     *lifecycle.Engine
	Dispatcher events.Dispatcher
	Broker     realtime.Broker
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      Clock
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Engine == nil {
		d.Engine = lifecycle.New(lifecycle.DefaultPolicy())
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// fanout publishes the side effects of a committed write. Failures are logged
// and never reach the caller.
type fanout struct {
	dispatcher events.Dispatcher
	broker     realtime.Broker
	logger     *zap.Logger
	clock      Clock
}

func newFanout(deps Dependencies) fanout {
	return fanout{dispatcher: deps.Dispatcher, broker: deps.Broker, logger: deps.Logger, clock: deps.Clock}
}

func (f fanout) publishEvent(ctx context.Context, event events.Event) {
	if f.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = f.clock()
	}
	if err := f.dispatcher.Publish(ctx, event); err != nil {
		f.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func (f fanout) publishChange(ctx context.Context, change realtime.Change) {
	if f.broker == nil {
		return
	}
	if change.At.IsZero() {
		change.At = f.clock()
	}
	if err := f.broker.Publish(ctx, change); err != nil {
		f.logger.Warn("realtime publish failed", zap.String("topic", change.Topic), zap.Error(err))
	}
}

// publishDoubtChange notifies the doubt feed and the feeds of both parties.
func (f fanout) publishDoubtChange(ctx context.Context, kind realtime.ChangeKind, d domain.Doubt, recordID string) {
	updatedAt := d.UpdatedAt
	topics := []string{realtime.DoubtTopic(d.ID), realtime.UserTopic(d.StudentID)}
	if d.AssignedSupportID != nil && *d.AssignedSupportID != "" {
		topics = append(topics, realtime.UserTopic(*d.AssignedSupportID))
	}
	for _, topic := range topics {
		f.publishChange(ctx, realtime.Change{
			Kind:      kind,
			Topic:     topic,
			DoubtID:   d.ID,
			UserID:    d.StudentID,
			Status:    d.Status,
			RecordID:  recordID,
			UpdatedAt: &updatedAt,
		})
	}
}

// storeError maps repository failures onto the error taxonomy. Anything
// unrecognised is treated as a transient failure the caller may retry by hand.
func storeError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	case errors.Is(err, repository.ErrStaleWrite):
		return apperrors.NewStaleState(err)
	case errors.Is(err, repository.ErrWriteRejected):
		return apperrors.NewPermissionDenied(err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict(resource+" already exists", nil)
	case errors.Is(err, repository.ErrConstraint):
		return apperrors.NewConflict(resource+" change rejected by a constraint", map[string]any{"id": id})
	default:
		return apperrors.NewUnavailable(err)
	}
}

// guardError converts an engine rejection. Role and ownership rejections are
// authorization failures; the rest are guard violations.
func guardError(err error) error {
	guardErr, ok := lifecycle.AsGuardError(err)
	if !ok {
		return apperrors.NewInternalError(err)
	}
	details := map[string]any{
		"action": string(guardErr.Action),
		"status": string(guardErr.Status),
	}
	if guardErr.IsPermission() {
		de := apperrors.NewForbidden(guardErr.Reason).(*apperrors.DomainError)
		details["reason_code"] = string(guardErr.Code)
		de.Details = details
		return de
	}
	return apperrors.NewGuardViolation(string(guardErr.Code), guardErr.Reason, details)
}

func canView(actor domain.Actor, d *domain.Doubt) bool {
	if actor.IsStaff() || actor.IsSystem() {
		return true
	}
	return d.IsOwnedBy(actor.UserID)
}

func requireActor(actor domain.Actor) error {
	if actor.UserID == "" || !actor.Role.Valid() {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
