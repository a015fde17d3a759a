package lifecycle

import (
	"strings"
	"time"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// Action names a lifecycle operation.
type Action string

const (
	ActionStartProgress Action = "start_progress"
	ActionMarkResolved  Action = "mark_resolved"
	ActionConfirmClose  Action = "confirm_close"
	ActionAutoClose     Action = "auto_close"
	ActionReopen        Action = "reopen"
	ActionEscalate      Action = "escalate"
	ActionResume        Action = "resume"
)

// Transition is the outcome of a successful operation.
type Transition struct {
	Action Action
	From   domain.DoubtStatus
	To     domain.DoubtStatus
	// Next is the record to persist. It equals the input when NoOp is set.
	Next domain.Doubt
	// Notice is nil when there is nobody to notify.
	Notice *Notice
	// NoOp marks idempotent repeats (auto-close or escalation of an already
	// closed or escalated doubt). Nothing should be written.
	NoOp bool
}

// Engine applies the transition table under a Policy.
type Engine struct {
	policy Policy
}

// New builds an engine. Zero fields in policy fall back to DefaultPolicy.
func New(policy Policy) *Engine {
	return &Engine{policy: policy.withDefaults()}
}

// Policy returns the effective policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// NewDoubt builds the initial record for a student submission.
func (e *Engine) NewDoubt(studentID, title, description string, now time.Time) domain.Doubt {
	now = now.UTC()
	return domain.Doubt{
		StudentID:     studentID,
		Title:         strings.TrimSpace(title),
		Description:   strings.TrimSpace(description),
		Status:        domain.DoubtStatusSubmitted,
		CreatedAt:     now,
		UpdatedAt:     now,
		SubmittedAt:   now,
		ReopenedCount: 0,
		SLADeadline:   now.Add(e.policy.SLAWindow),
	}
}

// Apply runs action against d on behalf of actor at time now. On rejection it
// returns a *GuardError and d is left untouched.
func (e *Engine) Apply(d domain.Doubt, action Action, actor domain.Actor, now time.Time) (Transition, error) {
	switch action {
	case ActionStartProgress:
		return e.StartProgress(d, actor, now)
	case ActionMarkResolved:
		return e.MarkResolved(d, actor, now)
	case ActionConfirmClose:
		return e.ConfirmClose(d, actor, now)
	case ActionAutoClose:
		return e.AutoClose(d, now)
	case ActionReopen:
		return e.Reopen(d, actor, now)
	case ActionEscalate:
		return e.Escalate(d, actor, now)
	case ActionResume:
		return e.Resume(d, actor, now)
	default:
		return Transition{}, reject(action, d.Status, GuardUnknownAction, "unknown action")
	}
}

// StartProgress moves a submitted or reopened doubt to in_progress. A support
// agent starting work on an unassigned doubt becomes its assignee.
func (e *Engine) StartProgress(d domain.Doubt, actor domain.Actor, now time.Time) (Transition, error) {
	if !actor.IsStaff() {
		return Transition{}, reject(ActionStartProgress, d.Status, GuardRoleNotAllowed, "only support staff can start work on a doubt")
	}
	if !CanStartProgress(d, actor) {
		return Transition{}, reject(ActionStartProgress, d.Status, GuardInvalidStatus, "work can only start on a submitted or reopened doubt")
	}
	next := d.Clone()
	next.Status = domain.DoubtStatusInProgress
	if next.AssignedSupportID == nil && actor.Role == domain.RoleSupport && actor.UserID != "" {
		id := actor.UserID
		next.AssignedSupportID = &id
	}
	return e.finish(ActionStartProgress, d, next, actor, now), nil
}

// MarkResolved moves an in_progress or reopened doubt to resolved.
func (e *Engine) MarkResolved(d domain.Doubt, actor domain.Actor, now time.Time) (Transition, error) {
	if !actor.IsStaff() {
		return Transition{}, reject(ActionMarkResolved, d.Status, GuardRoleNotAllowed, "only support staff can mark a doubt resolved")
	}
	if !CanMarkResolved(d, actor) {
		return Transition{}, reject(ActionMarkResolved, d.Status, GuardInvalidStatus, "only an in-progress or reopened doubt can be marked resolved")
	}
	next := d.Clone()
	next.Status = domain.DoubtStatusResolved
	resolvedAt := now.UTC()
	next.ResolvedAt = &resolvedAt
	return e.finish(ActionMarkResolved, d, next, actor, now), nil
}

// ConfirmClose lets the owning student close a resolved doubt.
func (e *Engine) ConfirmClose(d domain.Doubt, actor domain.Actor, now time.Time) (Transition, error) {
	if actor.Role != domain.RoleStudent {
		return Transition{}, reject(ActionConfirmClose, d.Status, GuardRoleNotAllowed, "only the student can confirm and close a doubt")
	}
	if !d.IsOwnedBy(actor.UserID) {
		return Transition{}, reject(ActionConfirmClose, d.Status, GuardNotOwner, "only the student who asked can close this doubt")
	}
	if !CanConfirmClose(d, actor) {
		return Transition{}, reject(ActionConfirmClose, d.Status, GuardInvalidStatus, "only a resolved doubt can be closed")
	}
	next := d.Clone()
	next.Status = domain.DoubtStatusClosed
	closedAt := now.UTC()
	next.ClosedAt = &closedAt
	return e.finish(ActionConfirmClose, d, next, actor, now), nil
}

// AutoClose closes a doubt that has been resolved for at least AutoCloseAfter.
// Applying it to an already closed doubt is a no-op.
func (e *Engine) AutoClose(d domain.Doubt, now time.Time) (Transition, error) {
	if d.Status.IsClosed() {
		return Transition{Action: ActionAutoClose, From: d.Status, To: d.Status, Next: d, NoOp: true}, nil
	}
	if d.Status != domain.DoubtStatusResolved {
		return Transition{}, reject(ActionAutoClose, d.Status, GuardInvalidStatus, "only a resolved doubt can be auto-closed")
	}
	if d.ResolvedAt == nil {
		return Transition{}, reject(ActionAutoClose, d.Status, GuardMissingResolvedAt, "resolution time is missing")
	}
	if !e.AutoCloseDue(d, now) {
		return Transition{}, reject(ActionAutoClose, d.Status, GuardAutoCloseNotDue, "the doubt has not been resolved long enough to auto-close")
	}
	next := d.Clone()
	next.Status = domain.DoubtStatusClosedAuto
	closedAt := now.UTC()
	next.ClosedAt = &closedAt
	return e.finish(ActionAutoClose, d, next, domain.SystemActor(), now), nil
}

// Reopen lets the owning student reopen a closed doubt once, within the reopen window.
func (e *Engine) Reopen(d domain.Doubt, actor domain.Actor, now time.Time) (Transition, error) {
	if actor.Role != domain.RoleStudent {
		return Transition{}, reject(ActionReopen, d.Status, GuardRoleNotAllowed, "only the student can reopen a doubt")
	}
	if !d.IsOwnedBy(actor.UserID) {
		return Transition{}, reject(ActionReopen, d.Status, GuardNotOwner, "only the student who asked can reopen this doubt")
	}
	if err := e.reopenGuard(d, now); err != nil {
		return Transition{}, err
	}
	next := d.Clone()
	next.Status = domain.DoubtStatusReopened
	next.ReopenedCount = d.ReopenedCount + 1
	next.ClosedAt = nil
	next.ResolvedAt = nil
	return e.finish(ActionReopen, d, next, actor, now), nil
}

// Escalate flags an unresolved doubt. The system may only escalate after the
// SLA deadline has passed and only once; admins may escalate explicitly.
func (e *Engine) Escalate(d domain.Doubt, actor domain.Actor, now time.Time) (Transition, error) {
	switch actor.Role {
	case domain.RoleSystem:
		if d.Status == domain.DoubtStatusEscalated {
			return Transition{Action: ActionEscalate, From: d.Status, To: d.Status, Next: d, NoOp: true}, nil
		}
		if !d.Status.IsActive() {
			return Transition{}, reject(ActionEscalate, d.Status, GuardInvalidStatus, "only an unresolved doubt can be escalated")
		}
		if d.EscalatedAt != nil {
			return Transition{}, reject(ActionEscalate, d.Status, GuardAlreadyEscalated, "the doubt was already escalated once")
		}
		if !SLABreached(d, now) {
			return Transition{}, reject(ActionEscalate, d.Status, GuardSLANotBreached, "the SLA deadline has not passed")
		}
	case domain.RoleAdmin:
		if !d.Status.IsActive() {
			return Transition{}, reject(ActionEscalate, d.Status, GuardInvalidStatus, "only an unresolved doubt can be escalated")
		}
	default:
		return Transition{}, reject(ActionEscalate, d.Status, GuardRoleNotAllowed, "only an admin can escalate a doubt")
	}
	next := d.Clone()
	next.Status = domain.DoubtStatusEscalated
	escalatedAt := now.UTC()
	next.EscalatedAt = &escalatedAt
	return e.finish(ActionEscalate, d, next, actor, now), nil
}

// Resume returns an escalated doubt to in_progress.
func (e *Engine) Resume(d domain.Doubt, actor domain.Actor, now time.Time) (Transition, error) {
	if !actor.IsStaff() {
		return Transition{}, reject(ActionResume, d.Status, GuardRoleNotAllowed, "only support staff can resume an escalated doubt")
	}
	if d.Status != domain.DoubtStatusEscalated {
		return Transition{}, reject(ActionResume, d.Status, GuardInvalidStatus, "only an escalated doubt can be resumed")
	}
	next := d.Clone()
	next.Status = domain.DoubtStatusInProgress
	if next.AssignedSupportID == nil && actor.Role == domain.RoleSupport && actor.UserID != "" {
		id := actor.UserID
		next.AssignedSupportID = &id
	}
	return e.finish(ActionResume, d, next, actor, now), nil
}

func (e *Engine) reopenGuard(d domain.Doubt, now time.Time) error {
	if !d.Status.IsClosed() {
		return reject(ActionReopen, d.Status, GuardInvalidStatus, "only a closed doubt can be reopened")
	}
	if d.ReopenedCount >= MaxReopens {
		return reject(ActionReopen, d.Status, GuardAlreadyReopened, "this doubt has already been reopened once")
	}
	if d.ClosedAt == nil {
		return reject(ActionReopen, d.Status, GuardMissingClosedAt, "closure time is missing")
	}
	if now.Sub(*d.ClosedAt) > e.policy.ReopenWindow {
		return reject(ActionReopen, d.Status, GuardReopenWindowExpired,
			"reopening is only allowed within "+describeWindow(e.policy.ReopenWindow)+" of closure")
	}
	return nil
}

func (e *Engine) finish(action Action, prev, next domain.Doubt, actor domain.Actor, now time.Time) Transition {
	next.UpdatedAt = now.UTC()
	return Transition{
		Action: action,
		From:   prev.Status,
		To:     next.Status,
		Next:   next,
		Notice: noticeFor(next, actor),
	}
}
