package domain

import "time"

// NotificationType describes why a notification was created.
type NotificationType string

const (
	NotificationStatusChange NotificationType = "status_change"
	NotificationMessage      NotificationType = "message"
	NotificationBadge        NotificationType = "badge"
)

// Notification is a one-way message to a single recipient.
type Notification struct {
	ID          string
	UserID      string
	DoubtID     *string
	Type        NotificationType
	Title       string
	Message     string
	StatusLabel *string
	Read        bool
	CreatedAt   time.Time
}
