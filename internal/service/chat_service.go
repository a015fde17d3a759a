package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/events"
	"github.com/spec-kit/doubt-service/internal/lifecycle"
	"github.com/spec-kit/doubt-service/internal/realtime"
	"github.com/spec-kit/doubt-service/internal/repository"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

const chatClosedCode = "chat_closed"

// ChatService manages the response thread of a doubt.
type ChatService struct {
	responses     repository.ResponseRepository
	doubts        *DoubtService
	notifications *NotificationService
	fanout        fanout
	logger        *zap.Logger
	clock         Clock
}

// NewChatService constructs the service.
func NewChatService(deps Dependencies, doubts *DoubtService, notifications *NotificationService) *ChatService {
	deps = deps.withDefaults()
	return &ChatService{
		responses:     deps.Store.Responses,
		doubts:        doubts,
		notifications: notifications,
		fanout:        newFanout(deps),
		logger:        deps.Logger,
		clock:         deps.Clock,
	}
}

// PostResponse appends a message to the thread. A staff reply to a submitted
// doubt also starts progress on it.
func (s *ChatService) PostResponse(ctx context.Context, actor domain.Actor, doubtID string, kind domain.ResponseType, text string) (*domain.DoubtResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if kind == "" {
		kind = domain.ResponseTypeText
	}
	if !kind.Valid() {
		return nil, apperrors.NewValidationError("unsupported response type", map[string]any{"response_type": string(kind)})
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("response text is required", nil)
	}

	doubt, err := s.doubts.load(ctx, actor, doubtID)
	if err != nil {
		return nil, err
	}
	if doubt.Status.IsClosed() {
		return nil, apperrors.NewGuardViolation(chatClosedCode, "chat is closed", map[string]any{"status": string(doubt.Status)})
	}

	resp := &domain.DoubtResponse{
		DoubtID:       doubtID,
		ResponderID:   actor.UserID,
		ResponderRole: actor.Role,
		Type:          kind,
		Text:          text,
		CreatedAt:     s.clock(),
	}
	if err := s.responses.Create(ctx, resp); err != nil {
		return nil, storeError(err, "doubt", doubtID)
	}

	if actor.IsStaff() && doubt.Status == domain.DoubtStatusSubmitted {
		if next, _, err := s.doubts.apply(ctx, *doubt, lifecycle.ActionStartProgress, actor, resp.CreatedAt); err != nil {
			// The message is stored; a concurrent transition is not the sender's failure.
			s.logger.Warn("auto start on reply failed", zap.String("doubt_id", doubtID), zap.Error(err))
		} else {
			doubt = next
		}
	}

	if recipient := counterpart(doubt, actor); recipient != "" && s.notifications != nil {
		s.notifications.emitBestEffort(ctx, messageNotification(recipient, doubt))
	}
	s.fanout.publishDoubtChange(ctx, realtime.ChangeResponseAdded, *doubt, resp.ID)
	s.fanout.publishEvent(ctx, events.Event{
		Type:    events.EventDoubtResponseAdded,
		DoubtID: doubtID,
		Actor:   events.ActorFrom(actor),
		Payload: events.DoubtResponseAddedPayload{
			ResponseID:   resp.ID,
			ResponseType: resp.Type,
			ResponderID:  resp.ResponderID,
			BodyPreview:  stringPreview(resp.Text, 120),
		},
	})
	return resp, nil
}

// ListResponses returns the thread oldest first.
func (s *ChatService) ListResponses(ctx context.Context, actor domain.Actor, doubtID string) ([]domain.DoubtResponse, error) {
	if _, err := s.doubts.load(ctx, actor, doubtID); err != nil {
		return nil, err
	}
	list, err := s.responses.ListByDoubt(ctx, doubtID)
	if err != nil {
		return nil, storeError(err, "doubt", doubtID)
	}
	return list, nil
}

// counterpart is who should hear about a message from actor.
func counterpart(d *domain.Doubt, actor domain.Actor) string {
	if actor.Role == domain.RoleStudent {
		if d.AssignedSupportID == nil || *d.AssignedSupportID == actor.UserID {
			return ""
		}
		return *d.AssignedSupportID
	}
	if d.StudentID == actor.UserID {
		return ""
	}
	return d.StudentID
}
