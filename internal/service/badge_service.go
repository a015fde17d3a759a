package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/events"
	"github.com/spec-kit/doubt-service/internal/repository"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

// BadgeService lists and awards achievement badges.
type BadgeService struct {
	badges        repository.BadgeRepository
	roles         repository.RoleRepository
	notifications *NotificationService
	fanout        fanout
	clock         Clock
}

// NewBadgeService constructs the service.
func NewBadgeService(deps Dependencies, notifications *NotificationService) *BadgeService {
	deps = deps.withDefaults()
	return &BadgeService{
		badges:        deps.Store.Badges,
		roles:         deps.Store.Roles,
		notifications: notifications,
		fanout:        newFanout(deps),
		clock:         deps.Clock,
	}
}

// ListBadges returns the badge catalog. An empty role lists every badge.
func (s *BadgeService) ListBadges(ctx context.Context, role domain.Role) ([]domain.Badge, error) {
	if role != "" && !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(role)})
	}
	list, err := s.badges.ListBadges(ctx, role)
	if err != nil {
		return nil, storeError(err, "badge", "")
	}
	return list, nil
}

// ListUserBadges returns the badges awarded to userID.
func (s *BadgeService) ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	list, err := s.badges.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user", userID)
	}
	return list, nil
}

// Award grants a badge. The badge must be meant for the recipient's role.
func (s *BadgeService) Award(ctx context.Context, actor domain.Actor, userID, badgeID string, doubtID *string) (*domain.UserBadge, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins can award badges")
	}
	badge, err := s.badges.GetBadge(ctx, badgeID)
	if err != nil {
		return nil, storeError(err, "badge", badgeID)
	}
	role, err := s.roles.GetRole(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
		}
		return nil, storeError(err, "user", userID)
	}
	if role != badge.ForRole {
		return nil, apperrors.NewValidationError("badge is not available for this role", map[string]any{
			"badge_role": string(badge.ForRole),
			"user_role":  string(role),
		})
	}

	awardedBy := actor.UserID
	award := &domain.UserBadge{
		UserID:    userID,
		BadgeID:   badgeID,
		DoubtID:   doubtID,
		AwardedBy: &awardedBy,
		AwardedAt: s.clock(),
	}
	if err := s.badges.Award(ctx, award); err != nil {
		return nil, storeError(err, "badge", badgeID)
	}
	award.Badge = badge

	if s.notifications != nil {
		s.notifications.emitBestEffort(ctx, badgeNotification(userID, badge, doubtID))
	}
	event := events.Event{
		Type:  events.EventBadgeAwarded,
		Actor: events.ActorFrom(actor),
		Payload: events.BadgeAwardedPayload{
			UserBadgeID: award.ID,
			UserID:      userID,
			BadgeID:     badgeID,
		},
	}
	if doubtID != nil {
		event.DoubtID = *doubtID
	}
	s.fanout.publishEvent(ctx, event)
	return award, nil
}
