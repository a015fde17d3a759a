// Package realtime fans record changes out to subscribers. Topics are
// per doubt and per user; delivery order within a topic follows publish order.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spec-kit/doubt-service/internal/domain"
)

// ChangeKind describes what happened to a record.
type ChangeKind string

const (
	ChangeDoubtCreated       ChangeKind = "doubt_created"
	ChangeDoubtUpdated       ChangeKind = "doubt_updated"
	ChangeResponseAdded      ChangeKind = "response_added"
	ChangeNotificationAdded  ChangeKind = "notification_added"
	ChangeNotificationsReads ChangeKind = "notifications_read"
)

// Change is the payload delivered to subscribers.
type Change struct {
	Kind      ChangeKind         `json:"kind"`
	Topic     string             `json:"topic"`
	DoubtID   string             `json:"doubt_id,omitempty"`
	UserID    string             `json:"user_id,omitempty"`
	Status    domain.DoubtStatus `json:"status,omitempty"`
	RecordID  string             `json:"record_id,omitempty"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
	At        time.Time          `json:"at"`
}

// Broker publishes changes and hands out subscriptions.
type Broker interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe returns a channel of changes on topic and a cancel func that
	// releases the subscription and closes the channel. The subscription also
	// ends when ctx is done.
	Subscribe(ctx context.Context, topic string) (<-chan Change, func(), error)
	Close() error
}

// DoubtTopic names the feed for a single doubt.
func DoubtTopic(doubtID string) string {
	return "doubt." + doubtID
}

// UserTopic names the feed for everything addressed to a user.
func UserTopic(userID string) string {
	return "user." + userID
}

func encode(change Change) ([]byte, error) {
	return json.Marshal(change)
}

func decode(data []byte) (Change, error) {
	var change Change
	err := json.Unmarshal(data, &change)
	return change, err
}
