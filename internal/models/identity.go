package models

import (
	"strings"
	"time"
)

// UnknownUser is the display fallback when a conversation partner's
// profile cannot be resolved. Kept as an explicit sentinel so callers can
// tell a missing join apart from a real name.
const UnknownUser = "unknown user"

// Identity is the authenticated user record for the current session.
// It is created by the auth service on sign-up/sign-in and read-only
// everywhere else.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the best human-readable name for the identity:
// full name, then the local part of the email, then the unknown-user
// sentinel.
func (i Identity) DisplayName() string {
	if i.FullName != "" {
		return i.FullName
	}
	if i.Email != "" {
		if at := strings.IndexByte(i.Email, '@'); at > 0 {
			return i.Email[:at]
		}
		return i.Email
	}
	return UnknownUser
}
