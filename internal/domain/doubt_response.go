package domain

import "time"

// ResponseType differentiates chat message payloads.
type ResponseType string

const (
	ResponseTypeText       ResponseType = "text"
	ResponseTypeAttachment ResponseType = "attachment"
	ResponseTypeVoice      ResponseType = "voice"
)

// Valid reports whether t is a supported response type.
func (t ResponseType) Valid() bool {
	switch t {
	case ResponseTypeText, ResponseTypeAttachment, ResponseTypeVoice:
		return true
	}
	return false
}

// DoubtResponse is an append-only chat entry on a doubt thread.
// For attachment and voice responses Text holds the file URL.
type DoubtResponse struct {
	ID            string
	DoubtID       string
	ResponderID   string
	ResponderRole Role
	Type          ResponseType
	Text          string
	CreatedAt     time.Time
}
