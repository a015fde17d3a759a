package lifecycle

import (
	"errors"
	"fmt"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// GuardCode identifies why a transition was rejected.
type GuardCode string

const (
	GuardInvalidStatus       GuardCode = "invalid_status"
	GuardRoleNotAllowed      GuardCode = "role_not_allowed"
	GuardNotOwner            GuardCode = "not_owner"
	GuardAlreadyReopened     GuardCode = "already_reopened"
	GuardReopenWindowExpired GuardCode = "reopen_window_expired"
	GuardMissingClosedAt     GuardCode = "missing_closed_at"
	GuardMissingResolvedAt   GuardCode = "missing_resolved_at"
	GuardAutoCloseNotDue     GuardCode = "auto_close_not_due"
	GuardSLANotBreached      GuardCode = "sla_not_breached"
	GuardAlreadyEscalated    GuardCode = "already_escalated"
	GuardUnknownAction       GuardCode = "unknown_action"
)

// GuardError reports a rejected transition. Reason is safe to show to users.
type GuardError struct {
	Action Action
	Status domain.DoubtStatus
	Code   GuardCode
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("%s rejected in status %s: %s", e.Action, e.Status, e.Reason)
}

// IsPermission reports whether the rejection concerns who is acting rather
// than the state of the doubt.
func (e *GuardError) IsPermission() bool {
	return e.Code == GuardRoleNotAllowed || e.Code == GuardNotOwner
}

// AsGuardError unwraps err into a *GuardError.
func AsGuardError(err error) (*GuardError, bool) {
	var guardErr *GuardError
	if errors.As(err, &guardErr) {
		return guardErr, true
	}
	return nil, false
}

func reject(action Action, status domain.DoubtStatus, code GuardCode, reason string) error {
	return &GuardError{Action: action, Status: status, Code: code, Reason: reason}
}
