package domain

import "time"

// Session represents a verified session token issued by the identity provider.
type Session struct {
	TokenID   string
	UserID    string
	Email     string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
