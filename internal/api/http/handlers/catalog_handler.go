package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/doubt-service/internal/api/dto"
	"github.com/spec-kit/doubt-service/internal/auth"
	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/service"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

// CatalogHandler serves the course catalog, badges and the caller profile.
type CatalogHandler struct {
	catalog   *service.CatalogService
	badges    *service.BadgeService
	validator *dto.Validator
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(catalog *service.CatalogService, badges *service.BadgeService, validator *dto.Validator) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, badges: badges, validator: validator}
}

// Me GET /me.
func (h *CatalogHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(fiber.Map{"data": dto.MeResponse{
		UserID: principal.Actor.UserID,
		Email:  principal.Session.Email,
		Role:   principal.Actor.Role,
	}})
}

// ListCourses GET /catalog/courses.
func (h *CatalogHandler) ListCourses(c *fiber.Ctx) error {
	courses, err := h.catalog.ListCourses(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		items = append(items, courseResponse(course))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListModules GET /catalog/courses/:id/modules.
func (h *CatalogHandler) ListModules(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	modules, err := h.catalog.ListModules(c.UserContext(), id)
	if err != nil {
		return err
	}
	items := make([]dto.ModuleResponse, 0, len(modules))
	for _, m := range modules {
		items = append(items, moduleResponse(m))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListTopics GET /catalog/modules/:id/topics.
func (h *CatalogHandler) ListTopics(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	topics, err := h.catalog.ListTopics(c.UserContext(), id)
	if err != nil {
		return err
	}
	items := make([]dto.TopicResponse, 0, len(topics))
	for _, t := range topics {
		items = append(items, topicResponse(t))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListBadges GET /badges?role=.
func (h *CatalogHandler) ListBadges(c *fiber.Ctx) error {
	badges, err := h.badges.ListBadges(c.UserContext(), domain.Role(c.Query("role")))
	if err != nil {
		return err
	}
	items := make([]dto.BadgeResponse, 0, len(badges))
	for i := range badges {
		items = append(items, badgeResponse(&badges[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// MyBadges GET /me/badges.
func (h *CatalogHandler) MyBadges(c *fiber.Ctx) error {
	actor := auth.ActorFromContext(c)
	awards, err := h.badges.ListUserBadges(c.UserContext(), actor.UserID)
	if err != nil {
		return err
	}
	items := make([]dto.UserBadgeResponse, 0, len(awards))
	for i := range awards {
		items = append(items, userBadgeResponse(&awards[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AwardBadge POST /badges/award.
func (h *CatalogHandler) AwardBadge(c *fiber.Ctx) error {
	var req dto.AwardBadgeRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	award, err := h.badges.Award(c.UserContext(), auth.ActorFromContext(c), req.UserID, req.BadgeID, req.DoubtID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userBadgeResponse(award)})
}

func userBadgeResponse(ub *domain.UserBadge) dto.UserBadgeResponse {
	resp := dto.UserBadgeResponse{
		ID:        ub.ID,
		UserID:    ub.UserID,
		DoubtID:   ub.DoubtID,
		AwardedBy: ub.AwardedBy,
		AwardedAt: ub.AwardedAt,
	}
	if ub.Badge != nil {
		b := badgeResponse(ub.Badge)
		resp.Badge = &b
	}
	return resp
}
