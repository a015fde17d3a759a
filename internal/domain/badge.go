package domain

import "time"

// BadgeType enumerates achievement kinds.
type BadgeType string

const (
	BadgeVerifiedDoubt    BadgeType = "verified_doubt"
	BadgeLearningStreak   BadgeType = "learning_streak"
	BadgeComplexSolver    BadgeType = "complex_solver"
	BadgeFastResolution   BadgeType = "fast_resolution"
	BadgeHighSatisfaction BadgeType = "high_satisfaction"
	BadgeComplexHandler   BadgeType = "complex_handler"
)

// Badge is a catalog entry that can be awarded to users of one role.
type Badge struct {
	ID          string
	Name        string
	Description string
	Type        BadgeType
	ForRole     Role
	IconURL     *string
	CreatedAt   time.Time
}

// UserBadge records a badge awarded to a user.
type UserBadge struct {
	ID        string
	UserID    string
	BadgeID   string
	DoubtID   *string
	AwardedBy *string
	AwardedAt time.Time
	Badge     *Badge
}
