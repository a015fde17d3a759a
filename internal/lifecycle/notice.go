package lifecycle

import (
	"fmt"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// StatusChangeTitle is the title of every status change notification.
const StatusChangeTitle = "Status Updated"

// Notice is the status change notification a transition produces.
type Notice struct {
	RecipientID string
	DoubtID     string
	Status      domain.DoubtStatus
	StatusLabel string
	Title       string
	Message     string
}

// noticeFor picks the counterparty of actor. Students notify the assigned
// agent; staff and the system notify the student.
func noticeFor(d domain.Doubt, actor domain.Actor) *Notice {
	var recipient string
	if actor.Role == domain.RoleStudent {
		if d.AssignedSupportID == nil || *d.AssignedSupportID == "" {
			return nil
		}
		recipient = *d.AssignedSupportID
	} else {
		recipient = d.StudentID
	}
	if recipient == "" || recipient == actor.UserID {
		return nil
	}
	return &Notice{
		RecipientID: recipient,
		DoubtID:     d.ID,
		Status:      d.Status,
		StatusLabel: d.Status.Label(),
		Title:       StatusChangeTitle,
		Message:     StatusChangeMessage(d.Title, d.Status),
	}
}

// StatusChangeMessage renders the notification body for a status change.
func StatusChangeMessage(title string, status domain.DoubtStatus) string {
	return fmt.Sprintf("Doubt \"%s\" status changed to %s", title, status.Label())
}
