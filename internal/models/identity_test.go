package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdentityDisplayName(t *testing.T) {
	assert.Equal(t, "Alice Doe", Identity{FullName: "Alice Doe", Email: "alice@example.com"}.DisplayName())
	assert.Equal(t, "alice", Identity{Email: "alice@example.com"}.DisplayName())
	assert.Equal(t, UnknownUser, Identity{}.DisplayName())
	assert.Equal(t, "@example.com", Identity{Email: "@example.com"}.DisplayName())
}

func TestPresenceRecordDisplayName(t *testing.T) {
	assert.Equal(t, "Bob", PresenceRecord{FullName: "Bob", Username: "bobby"}.DisplayName())
	assert.Equal(t, "bobby", PresenceRecord{Username: "bobby"}.DisplayName())
	assert.Equal(t, "bob@example.com", PresenceRecord{Email: "bob@example.com"}.DisplayName())
	assert.Equal(t, UnknownUser, PresenceRecord{}.DisplayName())
}

func TestPresenceRecordOnline(t *testing.T) {
	assert.True(t, PresenceRecord{Status: StatusOnline}.Online())
	assert.False(t, PresenceRecord{Status: StatusOffline}.Online())
	assert.False(t, PresenceRecord{}.Online())
}

func TestMessageInvolvedWith(t *testing.T) {
	msg := Message{SenderID: "a", ReceiverID: "b", Content: "hi", CreatedAt: time.Now()}
	assert.True(t, msg.InvolvedWith("a", "b"))
	assert.True(t, msg.InvolvedWith("b", "a"))
	assert.False(t, msg.InvolvedWith("a", "c"))
}
