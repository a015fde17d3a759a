package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/events"
	"github.com/spec-kit/doubt-service/internal/lifecycle"
	"github.com/spec-kit/doubt-service/internal/observability"
	"github.com/spec-kit/doubt-service/internal/realtime"
	"github.com/spec-kit/doubt-service/internal/repository"
	apperrors "github.com/spec-kit/doubt-service/pkg/util/errorutil"
)

// DoubtService coordinates doubt workflows. Every status change goes through
// the lifecycle engine and a compare-and-swap write.
type DoubtService struct {
	doubts        repository.DoubtRepository
	responses     repository.ResponseRepository
	attachments   repository.AttachmentRepository
	roles         repository.RoleRepository
	catalog       repository.CatalogRepository
	engine        *lifecycle.Engine
	notifications *NotificationService
	fanout        fanout
	logger        *zap.Logger
	metrics       *observability.Metrics
	clock         Clock
}

// AttachmentInput is file metadata supplied with a new doubt.
type AttachmentInput struct {
	FileName string
	FileType string
	FileURL  string
}

// DoubtCreateInput describes a student submission.
type DoubtCreateInput struct {
	Title       string
	Description string
	TopicID     *string
	Priority    *int
	Attachments []AttachmentInput
}

// DoubtListFilter describes listing filters. Students are always scoped to their own doubts.
type DoubtListFilter struct {
	Statuses     []domain.DoubtStatus
	TopicID      *string
	SearchTerm   *string
	AssignedToMe bool
	Unassigned   bool
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// DoubtDetail is a doubt with its thread and the actions the viewer may take.
type DoubtDetail struct {
	Doubt          domain.Doubt
	Responses      []domain.DoubtResponse
	Attachments    []domain.Attachment
	Topic          *domain.TopicPath
	AllowedActions []lifecycle.Action
}

// NewDoubtService constructs the service.
func NewDoubtService(deps Dependencies, notifications *NotificationService) *DoubtService {
	deps = deps.withDefaults()
	return &DoubtService{
		doubts:        deps.Store.Doubts,
		responses:     deps.Store.Responses,
		attachments:   deps.Store.Attachments,
		roles:         deps.Store.Roles,
		catalog:       deps.Store.Catalog,
		engine:        deps.Engine,
		notifications: notifications,
		fanout:        newFanout(deps),
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		clock:         deps.Clock,
	}
}

// Engine exposes the lifecycle engine for callers that render predicates.
func (s *DoubtService) Engine() *lifecycle.Engine {
	return s.engine
}

// CreateDoubt stores a new submission for a student.
func (s *DoubtService) CreateDoubt(ctx context.Context, actor domain.Actor, input DoubtCreateInput) (*domain.Doubt, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleStudent {
		return nil, apperrors.NewForbidden("only students can submit doubts")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description are required", nil)
	}
	if input.TopicID != nil {
		if _, err := s.catalog.GetTopic(ctx, *input.TopicID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewValidationError("unknown topic", map[string]any{"topic_id": *input.TopicID})
			}
			return nil, storeError(err, "topic", *input.TopicID)
		}
	}

	doubt := s.engine.NewDoubt(actor.UserID, title, description, s.clock())
	doubt.TopicID = input.TopicID
	doubt.Priority = input.Priority

	attachments := make([]domain.Attachment, 0, len(input.Attachments))
	for _, att := range input.Attachments {
		attachments = append(attachments, domain.Attachment{
			FileName:   strings.TrimSpace(att.FileName),
			FileType:   strings.TrimSpace(att.FileType),
			FileURL:    strings.TrimSpace(att.FileURL),
			UploadedBy: actor.UserID,
		})
	}

	if err := s.doubts.Create(ctx, &doubt, attachments); err != nil {
		return nil, storeError(err, "doubt", "")
	}

	s.fanout.publishDoubtChange(ctx, realtime.ChangeDoubtCreated, doubt, doubt.ID)
	s.fanout.publishEvent(ctx, events.Event{
		Type:    events.EventDoubtCreated,
		DoubtID: doubt.ID,
		Actor:   events.ActorFrom(actor),
		Payload: events.DoubtCreatedPayload{
			StudentID:   doubt.StudentID,
			TopicID:     doubt.TopicID,
			Title:       doubt.Title,
			SLADeadline: doubt.SLADeadline,
		},
	})
	return &doubt, nil
}

// GetDoubt returns the doubt with its thread. Students only see their own doubts.
func (s *DoubtService) GetDoubt(ctx context.Context, actor domain.Actor, id string) (*DoubtDetail, error) {
	doubt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	responses, err := s.responses.ListByDoubt(ctx, id)
	if err != nil {
		return nil, storeError(err, "doubt", id)
	}
	attachments, err := s.attachments.ListByDoubt(ctx, id)
	if err != nil {
		return nil, storeError(err, "doubt", id)
	}
	detail := &DoubtDetail{
		Doubt:          *doubt,
		Responses:      responses,
		Attachments:    attachments,
		AllowedActions: s.engine.AllowedActions(*doubt, actor, s.clock()),
	}
	if doubt.TopicID != nil {
		path, err := s.catalog.TopicPath(ctx, *doubt.TopicID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, storeError(err, "topic", *doubt.TopicID)
		}
		detail.Topic = path
	}
	return detail, nil
}

// ListDoubts returns doubts visible to the actor.
func (s *DoubtService) ListDoubts(ctx context.Context, actor domain.Actor, filter DoubtListFilter) ([]domain.Doubt, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.DoubtFilter{
		TopicID:     filter.TopicID,
		Statuses:    filter.Statuses,
		SearchTerm:  filter.SearchTerm,
		Unassigned:  filter.Unassigned,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	switch {
	case actor.Role == domain.RoleStudent:
		repoFilter.StudentID = &actor.UserID
		repoFilter.Unassigned = false
	case filter.AssignedToMe:
		repoFilter.AssignedSupportID = &actor.UserID
		repoFilter.Unassigned = false
	}
	list, err := s.doubts.List(ctx, repoFilter)
	if err != nil {
		return nil, storeError(err, "doubt", "")
	}
	return list, nil
}

// StartProgress moves a submitted or reopened doubt to in_progress.
func (s *DoubtService) StartProgress(ctx context.Context, actor domain.Actor, id string) (*domain.Doubt, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionStartProgress)
}

// MarkResolved marks a doubt resolved.
func (s *DoubtService) MarkResolved(ctx context.Context, actor domain.Actor, id string) (*domain.Doubt, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionMarkResolved)
}

// ConfirmClose closes a resolved doubt on behalf of its student.
func (s *DoubtService) ConfirmClose(ctx context.Context, actor domain.Actor, id string) (*domain.Doubt, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionConfirmClose)
}

// Reopen reopens a closed doubt once within the reopen window.
func (s *DoubtService) Reopen(ctx context.Context, actor domain.Actor, id string) (*domain.Doubt, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionReopen)
}

// Escalate flags an unresolved doubt. Only admins call this directly; the sweep escalates on SLA breach.
func (s *DoubtService) Escalate(ctx context.Context, actor domain.Actor, id string) (*domain.Doubt, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionEscalate)
}

// Resume returns an escalated doubt to in_progress.
func (s *DoubtService) Resume(ctx context.Context, actor domain.Actor, id string) (*domain.Doubt, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionResume)
}

// Claim assigns an unassigned doubt to the calling support agent.
func (s *DoubtService) Claim(ctx context.Context, actor domain.Actor, id string) (*domain.Doubt, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleSupport {
		return nil, apperrors.NewForbidden("only support agents can claim doubts")
	}
	doubt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if doubt.AssignedSupportID != nil {
		if *doubt.AssignedSupportID == actor.UserID {
			return doubt, nil
		}
		return nil, apperrors.NewConflict("doubt is already assigned", map[string]any{"assigned_support_id": *doubt.AssignedSupportID})
	}
	return s.assign(ctx, actor, doubt, &actor.UserID)
}

// Assign sets the support agent of a doubt. supportID nil clears the assignment.
func (s *DoubtService) Assign(ctx context.Context, actor domain.Actor, id string, supportID *string) (*domain.Doubt, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins can assign doubts")
	}
	if supportID != nil {
		role, err := s.roles.GetRole(ctx, *supportID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, storeError(err, "user", *supportID)
		}
		if role != domain.RoleSupport && role != domain.RoleAdmin {
			return nil, apperrors.NewValidationError("assignee must be a support agent", map[string]any{"assigned_support_id": *supportID})
		}
	}
	doubt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.assign(ctx, actor, doubt, supportID)
}

func (s *DoubtService) assign(ctx context.Context, actor domain.Actor, doubt *domain.Doubt, supportID *string) (*domain.Doubt, error) {
	now := s.clock()
	if err := s.doubts.UpdateAssignment(ctx, doubt.ID, supportID, now); err != nil {
		return nil, storeError(err, "doubt", doubt.ID)
	}
	doubt.AssignedSupportID = supportID
	doubt.UpdatedAt = now

	s.fanout.publishDoubtChange(ctx, realtime.ChangeDoubtUpdated, *doubt, "")
	s.fanout.publishEvent(ctx, events.Event{
		Type:    events.EventDoubtAssigned,
		DoubtID: doubt.ID,
		Actor:   events.ActorFrom(actor),
		Payload: events.DoubtAssignedPayload{AssignedSupportID: supportID},
	})
	return doubt, nil
}

// UpdatePriority changes the priority of a doubt. nil clears it.
func (s *DoubtService) UpdatePriority(ctx context.Context, actor domain.Actor, id string, priority *int) (*domain.Doubt, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("only support staff can change priority")
	}
	doubt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	old := doubt.Priority
	now := s.clock()
	if err := s.doubts.UpdatePriority(ctx, id, priority, now); err != nil {
		return nil, storeError(err, "doubt", id)
	}
	doubt.Priority = priority
	doubt.UpdatedAt = now

	s.fanout.publishDoubtChange(ctx, realtime.ChangeDoubtUpdated, *doubt, "")
	s.fanout.publishEvent(ctx, events.Event{
		Type:    events.EventDoubtPriorityChanged,
		DoubtID: id,
		Actor:   events.ActorFrom(actor),
		Payload: events.DoubtPriorityChangedPayload{OldPriority: old, NewPriority: priority},
	})
	return doubt, nil
}

// Authorize reports whether actor may see the doubt, without loading its thread.
func (s *DoubtService) Authorize(ctx context.Context, actor domain.Actor, id string) error {
	_, err := s.load(ctx, actor, id)
	return err
}

func (s *DoubtService) load(ctx context.Context, actor domain.Actor, id string) (*domain.Doubt, error) {
	if !actor.IsSystem() {
		if err := requireActor(actor); err != nil {
			return nil, err
		}
	}
	doubt, err := s.doubts.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "doubt", id)
	}
	if !canView(actor, doubt) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return doubt, nil
}

func (s *DoubtService) transition(ctx context.Context, actor domain.Actor, id string, action lifecycle.Action) (*domain.Doubt, error) {
	doubt, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	next, _, err := s.apply(ctx, *doubt, action, actor, s.clock())
	return next, err
}

// apply runs the engine on d and commits the result. The boolean reports
// whether anything was written.
func (s *DoubtService) apply(ctx context.Context, d domain.Doubt, action lifecycle.Action, actor domain.Actor, now time.Time) (*domain.Doubt, bool, error) {
	tr, err := s.engine.Apply(d, action, actor, now)
	if err != nil {
		s.metrics.RecordTransition(string(action), string(d.Status), "", "rejected")
		return nil, false, guardError(err)
	}
	if tr.NoOp {
		s.metrics.RecordTransition(string(action), string(tr.From), string(tr.To), "noop")
		return &tr.Next, false, nil
	}

	next := tr.Next
	if err := s.doubts.UpdateLifecycle(ctx, &next, repository.GuardOf(d)); err != nil {
		result := "failed"
		if errors.Is(err, repository.ErrStaleWrite) {
			result = "stale"
		}
		s.metrics.RecordTransition(string(action), string(tr.From), string(tr.To), result)
		return nil, false, storeError(err, "doubt", d.ID)
	}
	s.metrics.RecordTransition(string(action), string(tr.From), string(tr.To), "applied")
	s.logger.Info("doubt transition",
		zap.String("doubt_id", next.ID),
		zap.String("action", string(action)),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("actor_role", string(actor.Role)))

	if s.notifications != nil {
		if err := s.notifications.EmitNotice(ctx, tr.Notice); err != nil {
			s.logger.Warn("status notification not delivered", zap.String("doubt_id", next.ID), zap.Error(err))
		}
	}
	s.fanout.publishDoubtChange(ctx, realtime.ChangeDoubtUpdated, next, "")
	s.fanout.publishEvent(ctx, events.Event{
		Type:    events.EventDoubtStatusChanged,
		DoubtID: next.ID,
		Actor:   events.ActorFrom(actor),
		Payload: events.DoubtStatusChangedPayload{
			Action:        string(action),
			OldStatus:     tr.From,
			NewStatus:     tr.To,
			ReopenedCount: next.ReopenedCount,
		},
	})
	return &next, true, nil
}
