package lifecycle

import (
	"time"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// CanStartProgress reports whether actor may move d to in_progress.
func CanStartProgress(d domain.Doubt, actor domain.Actor) bool {
	if !actor.IsStaff() {
		return false
	}
	return d.Status == domain.DoubtStatusSubmitted || d.Status == domain.DoubtStatusReopened
}

// CanMarkResolved reports whether actor may resolve d.
func CanMarkResolved(d domain.Doubt, actor domain.Actor) bool {
	if !actor.IsStaff() {
		return false
	}
	return d.Status == domain.DoubtStatusInProgress || d.Status == domain.DoubtStatusReopened
}

// CanConfirmClose reports whether actor may close d.
func CanConfirmClose(d domain.Doubt, actor domain.Actor) bool {
	return actor.Role == domain.RoleStudent && d.IsOwnedBy(actor.UserID) && d.Status == domain.DoubtStatusResolved
}

// CanReopen reports whether actor may reopen d at now.
func (e *Engine) CanReopen(d domain.Doubt, actor domain.Actor, now time.Time) bool {
	if actor.Role != domain.RoleStudent || !d.IsOwnedBy(actor.UserID) {
		return false
	}
	return e.reopenGuard(d, now) == nil
}

// AutoCloseDue reports whether a resolved doubt has waited long enough to be closed by the sweep.
func (e *Engine) AutoCloseDue(d domain.Doubt, now time.Time) bool {
	if d.Status != domain.DoubtStatusResolved || d.ResolvedAt == nil {
		return false
	}
	return now.Sub(*d.ResolvedAt) >= e.policy.AutoCloseAfter
}

// SLABreached reports whether an unresolved doubt is past its deadline.
func SLABreached(d domain.Doubt, now time.Time) bool {
	return d.Status.IsActive() && now.After(d.SLADeadline)
}

// EscalationDue reports whether the sweep should escalate d.
func EscalationDue(d domain.Doubt, now time.Time) bool {
	return d.EscalatedAt == nil && SLABreached(d, now)
}

// AllowedActions lists the user-initiated actions actor may apply to d at now.
// Clients use it to decide which buttons to render.
func (e *Engine) AllowedActions(d domain.Doubt, actor domain.Actor, now time.Time) []Action {
	actions := make([]Action, 0, 3)
	if CanStartProgress(d, actor) {
		actions = append(actions, ActionStartProgress)
	}
	if CanMarkResolved(d, actor) {
		actions = append(actions, ActionMarkResolved)
	}
	if CanConfirmClose(d, actor) {
		actions = append(actions, ActionConfirmClose)
	}
	if e.CanReopen(d, actor, now) {
		actions = append(actions, ActionReopen)
	}
	if actor.Role == domain.RoleAdmin && d.Status.IsActive() {
		actions = append(actions, ActionEscalate)
	}
	if actor.IsStaff() && d.Status == domain.DoubtStatusEscalated {
		actions = append(actions, ActionResume)
	}
	return actions
}
