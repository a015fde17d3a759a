package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/doubt-service/internal/api/dto"
	"github.com/spec-kit/doubt-service/internal/auth"
	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/service"
)

// DoubtsHandler serves doubt, lifecycle and chat endpoints.
type DoubtsHandler struct {
	doubts    *service.DoubtService
	chat      *service.ChatService
	validator *dto.Validator
}

// NewDoubtsHandler constructs handler.
func NewDoubtsHandler(doubts *service.DoubtService, chat *service.ChatService, validator *dto.Validator) *DoubtsHandler {
	return &DoubtsHandler{doubts: doubts, chat: chat, validator: validator}
}

type transitionFunc func(ctx context.Context, actor domain.Actor, id string) (*domain.Doubt, error)

// CreateDoubt POST /doubts.
func (h *DoubtsHandler) CreateDoubt(c *fiber.Ctx) error {
	var req dto.CreateDoubtRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	input := service.DoubtCreateInput{
		Title:       req.Title,
		Description: req.Description,
		TopicID:     req.TopicID,
		Priority:    req.Priority,
	}
	for _, att := range req.Attachments {
		input.Attachments = append(input.Attachments, service.AttachmentInput{
			FileName: att.FileName,
			FileType: att.FileType,
			FileURL:  att.FileURL,
		})
	}
	doubt, err := h.doubts.CreateDoubt(c.UserContext(), auth.ActorFromContext(c), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": doubtSummary(doubt)})
}

// ListDoubts GET /doubts.
func (h *DoubtsHandler) ListDoubts(c *fiber.Ctx) error {
	filter, err := parseDoubtQuery(c)
	if err != nil {
		return err
	}
	doubts, err := h.doubts.ListDoubts(c.UserContext(), auth.ActorFromContext(c), filter)
	if err != nil {
		return err
	}
	items := make([]dto.DoubtSummary, 0, len(doubts))
	for i := range doubts {
		items = append(items, doubtSummary(&doubts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDoubt GET /doubts/:id.
func (h *DoubtsHandler) GetDoubt(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.doubts.GetDoubt(c.UserContext(), auth.ActorFromContext(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": doubtDetail(detail)})
}

// Start POST /doubts/:id/start.
func (h *DoubtsHandler) Start(c *fiber.Ctx) error {
	return h.transition(c, h.doubts.StartProgress)
}

// Resolve POST /doubts/:id/resolve.
func (h *DoubtsHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, h.doubts.MarkResolved)
}

// Close POST /doubts/:id/close.
func (h *DoubtsHandler) Close(c *fiber.Ctx) error {
	return h.transition(c, h.doubts.ConfirmClose)
}

// Reopen POST /doubts/:id/reopen.
func (h *DoubtsHandler) Reopen(c *fiber.Ctx) error {
	return h.transition(c, h.doubts.Reopen)
}

// Escalate POST /doubts/:id/escalate.
func (h *DoubtsHandler) Escalate(c *fiber.Ctx) error {
	return h.transition(c, h.doubts.Escalate)
}

// Resume POST /doubts/:id/resume.
func (h *DoubtsHandler) Resume(c *fiber.Ctx) error {
	return h.transition(c, h.doubts.Resume)
}

// Claim POST /doubts/:id/claim.
func (h *DoubtsHandler) Claim(c *fiber.Ctx) error {
	return h.transition(c, h.doubts.Claim)
}

// Assign POST /doubts/:id/assign.
func (h *DoubtsHandler) Assign(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	doubt, err := h.doubts.Assign(c.UserContext(), auth.ActorFromContext(c), id, req.AssignedSupportID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": doubtSummary(doubt)})
}

// UpdatePriority POST /doubts/:id/priority.
func (h *DoubtsHandler) UpdatePriority(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.PriorityRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	doubt, err := h.doubts.UpdatePriority(c.UserContext(), auth.ActorFromContext(c), id, req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": doubtSummary(doubt)})
}

// ListResponses GET /doubts/:id/responses.
func (h *DoubtsHandler) ListResponses(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	responses, err := h.chat.ListResponses(c.UserContext(), auth.ActorFromContext(c), id)
	if err != nil {
		return err
	}
	items := make([]dto.ResponseResponse, 0, len(responses))
	for i := range responses {
		items = append(items, responseResponse(&responses[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// PostResponse POST /doubts/:id/responses.
func (h *DoubtsHandler) PostResponse(c *fiber.Ctx) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateResponseRequest
	if err := bind(c, h.validator, &req); err != nil {
		return err
	}
	resp, err := h.chat.PostResponse(c.UserContext(), auth.ActorFromContext(c), id, domain.ResponseType(req.ResponseType), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": responseResponse(resp)})
}

func (h *DoubtsHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	doubt, err := fn(c.UserContext(), auth.ActorFromContext(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": doubtSummary(doubt)})
}
