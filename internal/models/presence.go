package models

import "time"

// Presence status values stored in the user_presence table.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PresenceRecord mirrors a row in the user_presence table. There is at
// most one record per user; the presence gateway upserts it rather than
// appending. Display fields are denormalized from the identity so the
// roster can render without a join.
type PresenceRecord struct {
	UserID    string    `json:"user_id"`
	Status    string    `json:"status"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	LastSeen  time.Time `json:"last_seen"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Online reports whether the record's status is online.
func (p PresenceRecord) Online() bool {
	return p.Status == StatusOnline
}

// DisplayName returns the best human-readable name for the record.
func (p PresenceRecord) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	if p.Username != "" {
		return p.Username
	}
	if p.Email != "" {
		return p.Email
	}
	return UnknownUser
}
