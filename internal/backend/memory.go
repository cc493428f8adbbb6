package backend

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

// Memory is an in-process backend implementing the same row, auth and
// change-feed contracts as the remote client. It backs the test suite
// and the terminal client's offline mode. Change events fan out
// synchronously to subscribers; duplicates and reordering are permitted
// by the contract, so consumers must not rely on either.
type Memory struct {
	mu        sync.Mutex
	now       func() time.Time
	messages  []models.Message
	presence  map[string]models.PresenceRecord
	usersByID map[string]models.Identity
	creds     map[string]memCredential // keyed by email
	session   string                   // signed-in user id, empty when signed out
	subs      map[string]map[string]func(ChangeEvent)
}

type memCredential struct {
	userID   string
	password string
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-process backend.
func NewMemory() *Memory {
	return &Memory{
		now:       time.Now,
		presence:  make(map[string]models.PresenceRecord),
		usersByID: make(map[string]models.Identity),
		creds:     make(map[string]memCredential),
		subs:      make(map[string]map[string]func(ChangeEvent)),
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.subs = make(map[string]map[string]func(ChangeEvent))
	m.mu.Unlock()
	return nil
}

// publish fans an event out to the table's subscribers. Callbacks run
// outside the store lock so they may call back into the backend.
func (m *Memory) publish(table string, typ ChangeType, row any) {
	raw, err := json.Marshal(row)
	if err != nil {
		return
	}
	ev := ChangeEvent{Type: typ, Table: table, New: raw}

	m.mu.Lock()
	fns := make([]func(ChangeEvent), 0, len(m.subs[table]))
	for _, fn := range m.subs[table] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (m *Memory) InsertMessage(_ context.Context, msg models.Message) (*models.Message, error) {
	if msg.SenderID == msg.ReceiverID {
		return nil, &RemoteError{Status: 409, Message: "sender and receiver must differ"}
	}
	if msg.Content == "" {
		return nil, &RemoteError{Status: 422, Message: "content must not be empty"}
	}

	m.mu.Lock()
	stored := msg
	stored.ID = ulid.Make().String()
	stored.CreatedAt = m.now()
	stored.Read = false
	m.messages = append(m.messages, stored)
	m.mu.Unlock()

	m.publish(TableMessages, ChangeInsert, stored)
	return &stored, nil
}

func (m *Memory) ListConversation(_ context.Context, selfID, peerID string) ([]models.Message, error) {
	m.mu.Lock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.InvolvedWith(selfID, peerID) {
			out = append(out, msg)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) ListMessagesInvolving(_ context.Context, userID string) ([]models.Message, error) {
	m.mu.Lock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.SenderID == userID || msg.ReceiverID == userID {
			out = append(out, msg)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) MarkMessagesRead(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	m.mu.Lock()
	var changed []models.Message
	for i := range m.messages {
		if _, ok := wanted[m.messages[i].ID]; ok && !m.messages[i].Read {
			m.messages[i].Read = true
			changed = append(changed, m.messages[i])
		}
	}
	m.mu.Unlock()

	for _, msg := range changed {
		m.publish(TableMessages, ChangeUpdate, msg)
	}
	return nil
}

func (m *Memory) MarkConversationRead(_ context.Context, senderID, receiverID string) error {
	m.mu.Lock()
	var changed []models.Message
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.SenderID == senderID && msg.ReceiverID == receiverID && !msg.Read {
			msg.Read = true
			changed = append(changed, *msg)
		}
	}
	m.mu.Unlock()

	for _, msg := range changed {
		m.publish(TableMessages, ChangeUpdate, msg)
	}
	return nil
}

func (m *Memory) CountUnread(_ context.Context, receiverID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, msg := range m.messages {
		if msg.ReceiverID == receiverID && !msg.Read {
			count++
		}
	}
	return count, nil
}

func (m *Memory) DeleteMessage(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, msg := range m.messages {
		if msg.ID == id {
			m.messages = append(m.messages[:i], m.messages[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) UpsertPresence(_ context.Context, rec models.PresenceRecord) error {
	if rec.UserID == "" {
		return &RemoteError{Status: 422, Message: "user_id must not be empty"}
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.LastSeen
	}

	m.mu.Lock()
	_, existed := m.presence[rec.UserID]
	m.presence[rec.UserID] = rec
	m.mu.Unlock()

	typ := ChangeInsert
	if existed {
		typ = ChangeUpdate
	}
	m.publish(TablePresence, typ, rec)
	return nil
}

func (m *Memory) SetPresenceStatus(_ context.Context, userID, status string, lastSeen time.Time) error {
	m.mu.Lock()
	rec, ok := m.presence[userID]
	if !ok {
		// An update filtered to a missing row matches nothing, same as
		// the remote backend.
		m.mu.Unlock()
		return nil
	}
	rec.Status = status
	rec.LastSeen = lastSeen
	rec.UpdatedAt = lastSeen
	m.presence[userID] = rec
	m.mu.Unlock()

	m.publish(TablePresence, ChangeUpdate, rec)
	return nil
}

func (m *Memory) ListPresence(_ context.Context, excludeUserID string) ([]models.PresenceRecord, error) {
	m.mu.Lock()
	out := make([]models.PresenceRecord, 0, len(m.presence))
	for _, rec := range m.presence {
		if rec.UserID != excludeUserID {
			out = append(out, rec)
		}
	}
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out, nil
}

func (m *Memory) GetPresence(_ context.Context, userID string) (*models.PresenceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.presence[userID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) CountPresence(_ context.Context, status string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, rec := range m.presence {
		if rec.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CurrentIdentity(_ context.Context) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == "" {
		return nil, ErrAuthRequired
	}
	ident, ok := m.usersByID[m.session]
	if !ok {
		return nil, ErrAuthRequired
	}
	return &ident, nil
}

func (m *Memory) SignUp(_ context.Context, email, password, name string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.creds[email]; exists {
		return nil, &RemoteError{Status: 422, Message: "user already registered"}
	}

	ident := models.Identity{
		ID:        uuid.NewString(),
		Email:     email,
		FullName:  name,
		CreatedAt: m.now(),
	}
	m.usersByID[ident.ID] = ident
	m.creds[email] = memCredential{userID: ident.ID, password: password}
	m.session = ident.ID
	return &ident, nil
}

func (m *Memory) SignIn(_ context.Context, email, password string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.creds[email]
	if !ok || cred.password != password {
		return nil, &RemoteError{Status: 400, Message: "invalid login credentials"}
	}
	ident := m.usersByID[cred.userID]
	m.session = ident.ID
	return &ident, nil
}

func (m *Memory) SignOut(_ context.Context) error {
	m.mu.Lock()
	m.session = ""
	m.mu.Unlock()
	return nil
}

// ExchangeSession treats the access token as a user id, which is all
// the offline mode needs.
func (m *Memory) ExchangeSession(_ context.Context, accessToken, _ string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ident, ok := m.usersByID[accessToken]
	if !ok {
		return nil, &RemoteError{Status: 401, Message: "invalid session token"}
	}
	m.session = ident.ID
	return &ident, nil
}

func (m *Memory) SubscribeChanges(_ context.Context, table string, fn func(ChangeEvent)) (*Subscription, error) {
	id := ulid.Make().String()

	m.mu.Lock()
	if m.subs[table] == nil {
		m.subs[table] = make(map[string]func(ChangeEvent))
	}
	m.subs[table][id] = fn
	m.mu.Unlock()

	return &Subscription{id: id, stop: func() {
		m.mu.Lock()
		delete(m.subs[table], id)
		m.mu.Unlock()
	}}, nil
}
