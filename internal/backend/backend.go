// Package backend holds the client-side handle to the remote
// backend-as-a-service: row-level access to the messages and
// user_presence tables, the auth endpoints, and the realtime change
// feed. The remote service owns persistence, delivery and ordering;
// this package only reproduces its request and event shapes.
package backend

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

// Logical tables exposed by the remote backend.
const (
	TableMessages = "messages"
	TablePresence = "user_presence"
)

// ChangeType is the kind of row change delivered on the realtime feed.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
)

// ChangeEvent is one row change delivered by the realtime feed.
// Delivery is best-effort: events may arrive out of order or more than
// once, and consumers must de-duplicate by row id.
type ChangeEvent struct {
	Type  ChangeType      `json:"event"`
	Table string          `json:"table"`
	New   json.RawMessage `json:"new"`
}

// Message decodes the event's row as a chat message.
func (e ChangeEvent) Message() (models.Message, error) {
	var m models.Message
	err := json.Unmarshal(e.New, &m)
	return m, err
}

// Presence decodes the event's row as a presence record.
func (e ChangeEvent) Presence() (models.PresenceRecord, error) {
	var p models.PresenceRecord
	err := json.Unmarshal(e.New, &p)
	return p, err
}

// Subscription is the handle returned by SubscribeChanges. Close is the
// sole cancellation primitive; it returns immediately and is safe to
// call more than once. The underlying channel teardown may complete
// asynchronously.
type Subscription struct {
	id   string
	once sync.Once
	stop func()
}

// NewSubscription wraps a teardown func in a close-once handle.
func NewSubscription(stop func()) *Subscription {
	return &Subscription{id: ulid.Make().String(), stop: stop}
}

// NoopSubscription returns a handle that does nothing on Close. Used
// where a subscription could not be established but the caller still
// expects a handle.
func NoopSubscription() *Subscription {
	return NewSubscription(func() {})
}

// ID returns the subscription's unique token.
func (s *Subscription) ID() string { return s.id }

// Close tears the subscription down. Idempotent.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(s.stop)
}

// Rows is the row-level data access surface over the two logical
// tables.
type Rows interface {
	// InsertMessage writes a new message row; the backend assigns the id
	// and created_at.
	InsertMessage(ctx context.Context, msg models.Message) (*models.Message, error)

	// ListConversation returns every message between the two users, in
	// either direction, ordered by creation time ascending.
	ListConversation(ctx context.Context, selfID, peerID string) ([]models.Message, error)

	// ListMessagesInvolving returns every message sent or received by the
	// user, newest first.
	ListMessagesInvolving(ctx context.Context, userID string) ([]models.Message, error)

	// MarkMessagesRead flips read to true for the given ids. Idempotent;
	// unknown or already-read ids are no-ops.
	MarkMessagesRead(ctx context.Context, ids []string) error

	// MarkConversationRead flips read to true on every unread message
	// from senderID to receiverID.
	MarkConversationRead(ctx context.Context, senderID, receiverID string) error

	// CountUnread counts unread messages addressed to the user.
	CountUnread(ctx context.Context, receiverID string) (int, error)

	// DeleteMessage removes a message row. Administrative escape hatch.
	DeleteMessage(ctx context.Context, id string) error

	// UpsertPresence writes the full presence record for rec.UserID,
	// creating or replacing it. At most one record exists per user.
	UpsertPresence(ctx context.Context, rec models.PresenceRecord) error

	// SetPresenceStatus updates only status and last_seen on an existing
	// presence record.
	SetPresenceStatus(ctx context.Context, userID, status string, lastSeen time.Time) error

	// ListPresence returns every presence record except the excluded
	// user's, most recently seen first.
	ListPresence(ctx context.Context, excludeUserID string) ([]models.PresenceRecord, error)

	// GetPresence returns the record for one user, or nil when absent.
	GetPresence(ctx context.Context, userID string) (*models.PresenceRecord, error)

	// CountPresence counts records with the given status.
	CountPresence(ctx context.Context, status string) (int, error)
}

// Auth is the authentication surface of the remote backend.
type Auth interface {
	// CurrentIdentity resolves the identity bound to the active session.
	CurrentIdentity(ctx context.Context) (*models.Identity, error)

	SignUp(ctx context.Context, email, password, name string) (*models.Identity, error)
	SignIn(ctx context.Context, email, password string) (*models.Identity, error)
	SignOut(ctx context.Context) error

	// ExchangeSession installs the tokens extracted from an OAuth
	// callback and resolves the identity they belong to.
	ExchangeSession(ctx context.Context, accessToken, refreshToken string) (*models.Identity, error)
}

// Changes is the realtime change-feed surface.
type Changes interface {
	// SubscribeChanges registers fn for INSERT/UPDATE events on the given
	// table. The returned handle must be closed to stop delivery.
	SubscribeChanges(ctx context.Context, table string, fn func(ChangeEvent)) (*Subscription, error)
}

// Backend is the full client-side handle to the remote service. The
// unconfigured state is a distinct implementation (Unconfigured), not a
// nil check sprinkled through callers.
type Backend interface {
	Rows
	Auth
	Changes
	Close() error
}
