// Package conversation is the orchestration layer owned by the chat
// screen: selected-peer state, the visible message list, the live
// roster, and the wiring between gateway subscriptions and local
// state.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/code-with-zain-hunzai/kekar-go/internal/auth"
	"github.com/code-with-zain-hunzai/kekar-go/internal/backend"
	"github.com/code-with-zain-hunzai/kekar-go/internal/chat"
	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
	"github.com/code-with-zain-hunzai/kekar-go/internal/presence"
)

// ErrNoPeer means Send was called before a peer was selected.
var ErrNoPeer = errors.New("no peer selected")

// View is the chat screen's state. It is created on screen mount,
// mutated by gateway callbacks and user actions, and discarded on
// unmount. The original runs on a single-threaded UI loop; here a
// mutex covers the same ground because callers may be goroutines.
type View struct {
	chat     *chat.Gateway
	presence *presence.Gateway
	sessions *auth.Service
	logger   zerolog.Logger

	mu       sync.Mutex
	selfID   string
	selected string
	messages []models.Message
	seen     map[string]struct{}
	roster   []models.PresenceRecord
	msgSub   *backend.Subscription
	presSub  *backend.Subscription
	onAppend func()
}

// NewView creates the view-model over the two gateways.
func NewView(chatGW *chat.Gateway, presGW *presence.Gateway, sessions *auth.Service, logger zerolog.Logger) *View {
	return &View{
		chat:     chatGW,
		presence: presGW,
		sessions: sessions,
		logger:   logger,
		seen:     make(map[string]struct{}),
	}
}

// SetOnAppend registers the hook fired whenever a message lands in the
// visible list; the UI uses it to scroll to the bottom.
func (v *View) SetOnAppend(fn func()) {
	v.mu.Lock()
	v.onAppend = fn
	v.mu.Unlock()
}

// Open runs the mount sequence: fetch the roster, flip self online,
// subscribe to presence deltas. Failures are logged and the screen
// shows an empty state; nothing here crashes the app.
func (v *View) Open(ctx context.Context) {
	if self, ok := v.sessions.Current(ctx); ok {
		v.mu.Lock()
		v.selfID = self.ID
		v.mu.Unlock()
	}

	roster := v.presence.AllUsers(ctx)
	v.mu.Lock()
	v.roster = roster
	v.mu.Unlock()

	if err := v.presence.SetOnline(ctx); err != nil {
		v.logger.Error().Err(err).Msg("set online failed")
	}

	sub := v.presence.SubscribePresence(ctx, v.applyPresence)
	v.mu.Lock()
	v.presSub = sub
	v.mu.Unlock()
}

// SelectPeer runs the peer-selection sequence: tear down the previous
// inbound subscription, load the conversation, subscribe to inbound
// messages, and mark the conversation read. A failed history load
// leaves an empty list rather than an error state.
func (v *View) SelectPeer(ctx context.Context, peerID string) {
	v.mu.Lock()
	old := v.msgSub
	v.msgSub = nil
	v.selected = peerID
	v.messages = nil
	v.seen = make(map[string]struct{})
	v.mu.Unlock()
	old.Close()

	history, err := v.chat.Conversation(ctx, peerID)
	if err != nil {
		v.logger.Warn().Err(err).Str("peer_id", peerID).Msg("conversation load failed")
	}

	v.mu.Lock()
	if v.selected == peerID {
		for _, msg := range history {
			if _, dup := v.seen[msg.ID]; dup {
				continue
			}
			v.seen[msg.ID] = struct{}{}
			v.messages = append(v.messages, msg)
		}
	}
	hook := v.onAppend
	v.mu.Unlock()
	if hook != nil && len(history) > 0 {
		hook()
	}

	sub := v.chat.SubscribeInbound(ctx, func(msg models.Message) {
		v.applyInbound(ctx, msg)
	})
	v.mu.Lock()
	replaced := v.selected != peerID
	if !replaced {
		v.msgSub = sub
	}
	v.mu.Unlock()
	if replaced {
		sub.Close()
	}

	if err := v.chat.MarkConversationRead(ctx, peerID); err != nil {
		v.logger.Warn().Err(err).Str("peer_id", peerID).Msg("mark conversation read failed")
	}
}

// ClearPeer leaves the conversation: the inbound subscription goes
// away and the message list empties.
func (v *View) ClearPeer() {
	v.mu.Lock()
	old := v.msgSub
	v.msgSub = nil
	v.selected = ""
	v.messages = nil
	v.seen = make(map[string]struct{})
	v.mu.Unlock()
	old.Close()
}

// Send delivers a message to the selected peer, reflecting it in the
// visible list immediately. On success the local echo is replaced by
// the server's row; on failure the send is logged and surfaced, with
// no retry.
func (v *View) Send(ctx context.Context, content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return chat.ErrEmptyMessage
	}

	v.mu.Lock()
	peerID := v.selected
	selfID := v.selfID
	v.mu.Unlock()
	if peerID == "" {
		return ErrNoPeer
	}
	if selfID == "" {
		return backend.ErrAuthRequired
	}

	echo := models.Message{
		ID:         "local-" + ulid.Make().String(),
		SenderID:   selfID,
		ReceiverID: peerID,
		Content:    trimmed,
		CreatedAt:  time.Now().UTC(),
	}
	v.appendVisible(echo)

	sent, err := v.chat.Send(ctx, peerID, trimmed)
	if err != nil {
		v.logger.Error().Err(err).Str("peer_id", peerID).Msg("send failed")
		return err
	}

	v.mu.Lock()
	if _, dup := v.seen[sent.ID]; dup {
		// The push event beat the response; drop the echo.
		v.removeLocked(echo.ID)
	} else {
		v.seen[sent.ID] = struct{}{}
		v.replaceLocked(echo.ID, *sent)
	}
	v.mu.Unlock()
	return nil
}

// applyInbound merges a pushed message into the visible list,
// de-duplicating by id, and marks it read when it is addressed to
// self.
func (v *View) applyInbound(ctx context.Context, msg models.Message) {
	v.mu.Lock()
	relevant := v.selected != "" &&
		(msg.SenderID == v.selected || msg.ReceiverID == v.selected)
	if !relevant {
		v.mu.Unlock()
		return
	}
	if _, dup := v.seen[msg.ID]; dup {
		v.mu.Unlock()
		return
	}
	v.seen[msg.ID] = struct{}{}
	v.messages = append(v.messages, msg)
	selfID := v.selfID
	hook := v.onAppend
	v.mu.Unlock()

	if hook != nil {
		hook()
	}
	if msg.ReceiverID == selfID {
		if err := v.chat.MarkRead(ctx, msg.ID); err != nil {
			v.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("mark read failed")
		}
	}
}

// applyPresence overlays one record onto the roster: replace in place
// when the user is already listed, append otherwise. The feed carries
// no deletes, so nothing is ever removed here.
func (v *View) applyPresence(rec models.PresenceRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.roster {
		if v.roster[i].UserID == rec.UserID {
			v.roster[i] = rec
			return
		}
	}
	v.roster = append(v.roster, rec)
}

func (v *View) appendVisible(msg models.Message) {
	v.mu.Lock()
	v.seen[msg.ID] = struct{}{}
	v.messages = append(v.messages, msg)
	hook := v.onAppend
	v.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// replaceLocked swaps the entry with the given id for the replacement.
// Caller holds the lock.
func (v *View) replaceLocked(id string, replacement models.Message) {
	delete(v.seen, id)
	for i := range v.messages {
		if v.messages[i].ID == id {
			v.messages[i] = replacement
			return
		}
	}
	v.messages = append(v.messages, replacement)
}

// removeLocked drops the entry with the given id. Caller holds the
// lock.
func (v *View) removeLocked(id string) {
	delete(v.seen, id)
	for i := range v.messages {
		if v.messages[i].ID == id {
			v.messages = append(v.messages[:i], v.messages[i+1:]...)
			return
		}
	}
}

// Selected returns the currently selected peer id, empty when none.
func (v *View) Selected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// Messages returns a copy of the visible message list.
func (v *View) Messages() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Roster returns a copy of the active-user roster.
func (v *View) Roster() []models.PresenceRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.PresenceRecord, len(v.roster))
	copy(out, v.roster)
	return out
}

// Close runs the unmount sequence: both subscriptions torn down, self
// flipped offline. Safe when nothing was ever opened.
func (v *View) Close(ctx context.Context) error {
	v.mu.Lock()
	msgSub := v.msgSub
	presSub := v.presSub
	v.msgSub = nil
	v.presSub = nil
	v.mu.Unlock()

	msgSub.Close()
	presSub.Close()
	return v.presence.SetOffline(ctx)
}
