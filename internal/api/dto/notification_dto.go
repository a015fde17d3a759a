package dto

import (
	"time"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// NotificationResponse response.
type NotificationResponse struct {
	ID          string                  `json:"id"`
	DoubtID     *string                 `json:"doubt_id"`
	Type        domain.NotificationType `json:"notification_type"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	StatusLabel *string                 `json:"status_label"`
	Read        bool                    `json:"is_read"`
	CreatedAt   time.Time               `json:"created_at"`
}

// MeResponse describes the caller.
type MeResponse struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email,omitempty"`
	Role   domain.Role `json:"role"`
}
