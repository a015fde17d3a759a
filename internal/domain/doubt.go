package domain

import "time"

// DoubtStatus enumerates lifecycle states for doubts. Values are persisted verbatim.
type DoubtStatus string

const (
	DoubtStatusSubmitted  DoubtStatus = "submitted"
	DoubtStatusInProgress DoubtStatus = "in_progress"
	DoubtStatusResolved   DoubtStatus = "resolved"
	DoubtStatusClosed     DoubtStatus = "closed"
	DoubtStatusClosedAuto DoubtStatus = "closed_auto"
	DoubtStatusReopened   DoubtStatus = "reopened"
	DoubtStatusEscalated  DoubtStatus = "escalated"
)

var statusLabels = map[DoubtStatus]string{
	DoubtStatusSubmitted:  "Submitted",
	DoubtStatusInProgress: "In Progress",
	DoubtStatusResolved:   "Resolved",
	DoubtStatusClosed:     "Closed",
	DoubtStatusClosedAuto: "Auto-Closed",
	DoubtStatusReopened:   "Reopened",
	DoubtStatusEscalated:  "Escalated",
}

// Label returns the human-readable status name shown to users.
func (s DoubtStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Valid reports whether s is a known status.
func (s DoubtStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsClosed reports whether s is one of the closed states.
func (s DoubtStatus) IsClosed() bool {
	return s == DoubtStatusClosed || s == DoubtStatusClosedAuto
}

// IsActive reports whether the doubt still awaits resolution.
func (s DoubtStatus) IsActive() bool {
	return s == DoubtStatusSubmitted || s == DoubtStatusInProgress || s == DoubtStatusReopened
}

// AllDoubtStatuses lists every status in lifecycle order.
func AllDoubtStatuses() []DoubtStatus {
	return []DoubtStatus{
		DoubtStatusSubmitted,
		DoubtStatusInProgress,
		DoubtStatusResolved,
		DoubtStatusClosed,
		DoubtStatusClosedAuto,
		DoubtStatusReopened,
		DoubtStatusEscalated,
	}
}

// Doubt is the aggregate for a student support request.
type Doubt struct {
	ID                string
	StudentID         string
	AssignedSupportID *string
	TopicID           *string
	Title             string
	Description       string
	Status            DoubtStatus
	Priority          *int
	CreatedAt         time.Time
	UpdatedAt         time.Time
	SubmittedAt       time.Time
	ResolvedAt        *time.Time
	ClosedAt          *time.Time
	EscalatedAt       *time.Time
	ReopenedCount     int
	SLADeadline       time.Time
}

// Clone returns a deep copy so callers can mutate the result freely.
func (d Doubt) Clone() Doubt {
	out := d
	out.AssignedSupportID = cloneString(d.AssignedSupportID)
	out.TopicID = cloneString(d.TopicID)
	out.ResolvedAt = cloneTime(d.ResolvedAt)
	out.ClosedAt = cloneTime(d.ClosedAt)
	out.EscalatedAt = cloneTime(d.EscalatedAt)
	if d.Priority != nil {
		p := *d.Priority
		out.Priority = &p
	}
	return out
}

// IsOwnedBy reports whether userID created the doubt.
func (d Doubt) IsOwnedBy(userID string) bool {
	return userID != "" && d.StudentID == userID
}

// Attachment stores metadata for a file uploaded alongside a doubt.
type Attachment struct {
	ID         string
	DoubtID    string
	FileName   string
	FileType   string
	FileURL    string
	UploadedBy string
	CreatedAt  time.Time
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
