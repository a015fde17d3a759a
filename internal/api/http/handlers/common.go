package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/doubt-service/internal/api/dto"
	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/service"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

// bind parses the body into req and validates it.
func bind(c *fiber.Ctx, v *dto.Validator, req any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	return v.Struct(req)
}

// idParam returns the named route parameter when it is a UUID.
func idParam(c *fiber.Ctx, name string) (string, error) {
	val := c.Params(name)
	if _, err := uuid.Parse(val); err != nil {
		return "", apperrors.NewValidationError("invalid "+name, map[string]any{"field": name, "rule": "uuid"})
	}
	return val, nil
}

func parseDoubtQuery(c *fiber.Ctx) (service.DoubtListFilter, error) {
	filter := service.DoubtListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			status := domain.DoubtStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return filter, apperrors.NewValidationError("unknown status", map[string]any{"field": "status", "value": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if topic := c.Query("topic_id"); topic != "" {
		filter.TopicID = &topic
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	filter.AssignedToMe = c.QueryBool("assigned_to_me")
	filter.Unassigned = c.QueryBool("unassigned")
	filter.CreatedFrom = parseTime(c.Query("created_from"))
	filter.CreatedTo = parseTime(c.Query("created_to"))

	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func doubtSummary(d *domain.Doubt) dto.DoubtSummary {
	return dto.DoubtSummary{
		ID:                d.ID,
		StudentID:         d.StudentID,
		AssignedSupportID: d.AssignedSupportID,
		TopicID:           d.TopicID,
		Title:             d.Title,
		Status:            d.Status,
		StatusLabel:       d.Status.Label(),
		Priority:          d.Priority,
		ReopenedCount:     d.ReopenedCount,
		SLADeadline:       d.SLADeadline,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func doubtDetail(detail *service.DoubtDetail) dto.DoubtDetailResponse {
	d := detail.Doubt
	responses := make([]dto.ResponseResponse, 0, len(detail.Responses))
	for i := range detail.Responses {
		responses = append(responses, responseResponse(&detail.Responses[i]))
	}
	attachments := make([]dto.AttachmentResponse, 0, len(detail.Attachments))
	for _, att := range detail.Attachments {
		attachments = append(attachments, dto.AttachmentResponse{
			ID:         att.ID,
			FileName:   att.FileName,
			FileType:   att.FileType,
			FileURL:    att.FileURL,
			UploadedBy: att.UploadedBy,
			CreatedAt:  att.CreatedAt,
		})
	}
	actions := make([]string, 0, len(detail.AllowedActions))
	for _, a := range detail.AllowedActions {
		actions = append(actions, string(a))
	}
	resp := dto.DoubtDetailResponse{
		DoubtSummary:   doubtSummary(&d),
		Description:    d.Description,
		SubmittedAt:    d.SubmittedAt,
		ResolvedAt:     d.ResolvedAt,
		ClosedAt:       d.ClosedAt,
		EscalatedAt:    d.EscalatedAt,
		Responses:      responses,
		Attachments:    attachments,
		AllowedActions: actions,
	}
	if detail.Topic != nil {
		path := topicPathResponse(detail.Topic)
		resp.Topic = &path
	}
	return resp
}

func responseResponse(r *domain.DoubtResponse) dto.ResponseResponse {
	return dto.ResponseResponse{
		ID:            r.ID,
		ResponderID:   r.ResponderID,
		ResponderRole: r.ResponderRole,
		ResponseType:  r.Type,
		Text:          r.Text,
		CreatedAt:     r.CreatedAt,
	}
}

func topicPathResponse(p *domain.TopicPath) dto.TopicPathResponse {
	return dto.TopicPathResponse{
		Course: courseResponse(p.Course),
		Module: moduleResponse(p.Module),
		Topic:  topicResponse(p.Topic),
	}
}

func courseResponse(c domain.Course) dto.CourseResponse {
	return dto.CourseResponse{ID: c.ID, Name: c.Name, Description: c.Description}
}

func moduleResponse(m domain.Module) dto.ModuleResponse {
	return dto.ModuleResponse{ID: m.ID, CourseID: m.CourseID, Name: m.Name, Description: m.Description, OrderIndex: m.OrderIndex}
}

func topicResponse(t domain.Topic) dto.TopicResponse {
	return dto.TopicResponse{ID: t.ID, ModuleID: t.ModuleID, Name: t.Name, Description: t.Description, OrderIndex: t.OrderIndex}
}

func badgeResponse(b *domain.Badge) dto.BadgeResponse {
	return dto.BadgeResponse{ID: b.ID, Name: b.Name, Description: b.Description, Type: b.Type, ForRole: b.ForRole, IconURL: b.IconURL}
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          n.ID,
		DoubtID:     n.DoubtID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		StatusLabel: n.StatusLabel,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
	}
}
