package domain

import "time"

// Role identifies a participant type on the marketplace
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAstrologer Role = "astrologer"
	RoleUser       Role = "user"
)

// Counterpart is one entry of the conversation roster as loaded from the
// console's data layer.
type Counterpart struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   Role   `json:"role"`
}

// MessagePreview is the last message shown next to a roster entry
type MessagePreview struct {
	Text  string `json:"text"`
	IsOwn bool   `json:"is_own"`
}

// RosterEntry is one row of the ranked conversation list exposed to the UI
type RosterEntry struct {
	CounterpartID  string         `json:"counterpart_id"`
	Name           string         `json:"name"`
	Avatar         string         `json:"avatar,omitempty"`
	Online         bool           `json:"online"`
	UnreadCount    int            `json:"unread_count"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	LastPreview    MessagePreview `json:"last_preview"`
}
