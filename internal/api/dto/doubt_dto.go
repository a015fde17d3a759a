package dto

import (
	"time"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// AttachmentRequest is file metadata sent with a new doubt.
type AttachmentRequest struct {
	FileName string `json:"file_name" validate:"required,max=255"`
	FileType string `json:"file_type" validate:"required,max=100"`
	FileURL  string `json:"file_url" validate:"required,url"`
}

// CreateDoubtRequest payload.
type CreateDoubtRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"required,max=5000"`
	TopicID     *string             `json:"topic_id" validate:"omitempty,uuid"`
	Priority    *int                `json:"priority" validate:"omitempty,min=1,max=5"`
	Attachments []AttachmentRequest `json:"attachments" validate:"max=10,dive"`
}

// AssignRequest payload. A null support id clears the assignment.
type AssignRequest struct {
	AssignedSupportID *string `json:"assigned_support_id" validate:"omitempty,min=1"`
}

// PriorityRequest payload.
type PriorityRequest struct {
	Priority *int `json:"priority" validate:"omitempty,min=1,max=5"`
}

// CreateResponseRequest payload.
type CreateResponseRequest struct {
	ResponseType string `json:"response_type" validate:"omitempty,oneof=text attachment voice"`
	Text         string `json:"response_text" validate:"required,max=5000"`
}

// DoubtSummary response.
type DoubtSummary struct {
	ID                string             `json:"id"`
	StudentID         string             `json:"student_id"`
	AssignedSupportID *string            `json:"assigned_support_id"`
	TopicID           *string            `json:"topic_id"`
	Title             string             `json:"title"`
	Status            domain.DoubtStatus `json:"status"`
	StatusLabel       string             `json:"status_label"`
	Priority          *int               `json:"priority"`
	ReopenedCount     int                `json:"reopened_count"`
	SLADeadline       time.Time          `json:"sla_deadline"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// DoubtDetailResponse provides the full doubt with its thread.
type DoubtDetailResponse struct {
	DoubtSummary
	Description    string               `json:"description"`
	SubmittedAt    time.Time            `json:"submitted_at"`
	ResolvedAt     *time.Time           `json:"resolved_at"`
	ClosedAt       *time.Time           `json:"closed_at"`
	EscalatedAt    *time.Time           `json:"escalated_at"`
	Topic          *TopicPathResponse   `json:"topic,omitempty"`
	Responses      []ResponseResponse   `json:"responses"`
	Attachments    []AttachmentResponse `json:"attachments"`
	AllowedActions []string             `json:"allowed_actions"`
}

// ResponseResponse represents one chat message.
type ResponseResponse struct {
	ID            string              `json:"id"`
	ResponderID   string              `json:"responder_id"`
	ResponderRole domain.Role         `json:"responder_role"`
	ResponseType  domain.ResponseType `json:"response_type"`
	Text          string              `json:"response_text"`
	CreatedAt     time.Time           `json:"created_at"`
}

// AttachmentResponse represents attachment metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	FileType   string    `json:"file_type"`
	FileURL    string    `json:"file_url"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChangeResponse is one realtime change pushed to a stream.
type ChangeResponse struct {
	Kind      string             `json:"kind"`
	DoubtID   string             `json:"doubt_id,omitempty"`
	UserID    string             `json:"user_id,omitempty"`
	Status    domain.DoubtStatus `json:"status,omitempty"`
	RecordID  string             `json:"record_id,omitempty"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
	At        time.Time          `json:"at"`
}
