package dto

import (
	"time"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// CourseResponse response.
type CourseResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ModuleResponse response.
type ModuleResponse struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
}

// TopicResponse response.
type TopicResponse struct {
	ID          string `json:"id"`
	ModuleID    string `json:"module_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OrderIndex  int    `json:"order_index"`
}

// TopicPathResponse names the course and module a topic belongs to.
type TopicPathResponse struct {
	Course CourseResponse `json:"course"`
	Module ModuleResponse `json:"module"`
	Topic  TopicResponse  `json:"topic"`
}

// BadgeResponse response.
type BadgeResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Type        domain.BadgeType `json:"badge_type"`
	ForRole     domain.Role      `json:"for_role"`
	IconURL     *string          `json:"icon_url"`
}

// UserBadgeResponse response.
type UserBadgeResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	DoubtID   *string        `json:"doubt_id"`
	AwardedBy *string        `json:"awarded_by"`
	AwardedAt time.Time      `json:"awarded_at"`
	Badge     *BadgeResponse `json:"badge,omitempty"`
}

// AwardBadgeRequest payload.
type AwardBadgeRequest struct {
	UserID  string  `json:"user_id" validate:"required"`
	BadgeID string  `json:"badge_id" validate:"required,uuid"`
	DoubtID *string `json:"doubt_id" validate:"omitempty,uuid"`
}
