package events

import (
	"time"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDoubtCreated         EventType = "doubt_created"
	EventDoubtStatusChanged   EventType = "doubt_status_changed"
	EventDoubtAssigned        EventType = "doubt_assigned"
	EventDoubtPriorityChanged EventType = "doubt_priority_changed"
	EventDoubtResponseAdded   EventType = "doubt_response_added"
	EventNotificationCreated  EventType = "notification_created"
	EventBadgeAwarded         EventType = "badge_awarded"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role"`
}

// ActorFrom converts a domain actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{UserID: a.UserID, Role: a.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	DoubtID   string    `json:"doubt_id,omitempty"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// DoubtCreatedPayload payload.
type DoubtCreatedPayload struct {
	StudentID   string    `json:"student_id"`
	TopicID     *string   `json:"topic_id,omitempty"`
	Title       string    `json:"title"`
	SLADeadline time.Time `json:"sla_deadline"`
}

// DoubtStatusChangedPayload payload.
type DoubtStatusChangedPayload struct {
	Action        string             `json:"action"`
	OldStatus     domain.DoubtStatus `json:"old_status"`
	NewStatus     domain.DoubtStatus `json:"new_status"`
	ReopenedCount int                `json:"reopened_count"`
}

// DoubtAssignedPayload payload.
type DoubtAssignedPayload struct {
	AssignedSupportID *string `json:"assigned_support_id,omitempty"`
}

// DoubtPriorityChangedPayload payload.
type DoubtPriorityChangedPayload struct {
	OldPriority *int `json:"old_priority,omitempty"`
	NewPriority *int `json:"new_priority,omitempty"`
}

// DoubtResponseAddedPayload payload.
type DoubtResponseAddedPayload struct {
	ResponseID   string              `json:"response_id"`
	ResponseType domain.ResponseType `json:"response_type"`
	ResponderID  string              `json:"responder_id"`
	BodyPreview  string              `json:"body_preview"`
}

// NotificationCreatedPayload payload.
type NotificationCreatedPayload struct {
	NotificationID string                  `json:"notification_id"`
	RecipientID    string                  `json:"recipient_id"`
	Type           domain.NotificationType `json:"type"`
	Title          string                  `json:"title"`
}

// BadgeAwardedPayload payload.
type BadgeAwardedPayload struct {
	UserBadgeID string `json:"user_badge_id"`
	UserID      string `json:"user_id"`
	BadgeID     string `json:"badge_id"`
}
