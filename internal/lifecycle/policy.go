// Package lifecycle implements the doubt status state machine: the transition
// table, guard predicates and timestamp rules. It performs no I/O; callers load
// the record, pass the current time and actor, and persist the result.
package lifecycle

import (
	"fmt"
	"time"
)

const (
	defaultSLAWindow      = 48 * time.Hour
	defaultReopenWindow   = 48 * time.Hour
	defaultAutoCloseAfter = 48 * time.Hour
)

// MaxReopens caps reopened_count. The doubts table enforces the same bound.
const MaxReopens = 1

// Policy holds the time windows that drive the state machine.
type Policy struct {
	// SLAWindow is added to the creation time to produce the SLA deadline.
	SLAWindow time.Duration
	// ReopenWindow bounds how long after closure a student may reopen.
	ReopenWindow time.Duration
	// AutoCloseAfter is how long a doubt may stay resolved before the sweep closes it.
	AutoCloseAfter time.Duration
}

// DefaultPolicy returns the 48 hour windows and single reopen.
func DefaultPolicy() Policy {
	return Policy{
		SLAWindow:      defaultSLAWindow,
		ReopenWindow:   defaultReopenWindow,
		AutoCloseAfter: defaultAutoCloseAfter,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.SLAWindow <= 0 {
		p.SLAWindow = def.SLAWindow
	}
	if p.ReopenWindow <= 0 {
		p.ReopenWindow = def.ReopenWindow
	}
	if p.AutoCloseAfter <= 0 {
		p.AutoCloseAfter = def.AutoCloseAfter
	}
	return p
}

// describeWindow renders a window for rejection reasons, e.g. "48 hours".
func describeWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}
