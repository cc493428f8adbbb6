// Package chat is the message gateway: typed send/fetch/read-state
// operations over the messages table plus the inbound realtime
// subscription.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/code-with-zain-hunzai/kekar-go/internal/auth"
	"github.com/code-with-zain-hunzai/kekar-go/internal/backend"
	"github.com/code-with-zain-hunzai/kekar-go/internal/metrics"
	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

var (
	// ErrEmptyMessage rejects sends whose content trims to nothing.
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrSelfMessage rejects sends addressed to the sender.
	ErrSelfMessage = errors.New("cannot send a message to yourself")
)

// Gateway wraps the messages table behind a typed contract. One
// instance per app session, constructed explicitly so tests can run
// isolated copies.
type Gateway struct {
	be       backend.Backend
	sessions *auth.Service
	logger   zerolog.Logger

	mu  sync.Mutex
	sub *backend.Subscription
}

// NewGateway creates a message gateway.
func NewGateway(be backend.Backend, sessions *auth.Service, logger zerolog.Logger) *Gateway {
	return &Gateway{be: be, sessions: sessions, logger: logger}
}

// Send writes a message to the receiver. The backend assigns id and
// timestamp on the returned message. No retry on failure; the caller
// decides what to surface.
func (g *Gateway) Send(ctx context.Context, receiverID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := uuid.Parse(receiverID); err != nil {
		return nil, fmt.Errorf("invalid receiver id %q: %w", receiverID, err)
	}

	self, ok := g.sessions.Current(ctx)
	if !ok {
		return nil, backend.ErrAuthRequired
	}
	if receiverID == self.ID {
		return nil, ErrSelfMessage
	}

	msg, err := g.be.InsertMessage(ctx, models.Message{
		SenderID:   self.ID,
		ReceiverID: receiverID,
		Content:    content,
	})
	if err != nil {
		metrics.SendFailures.Inc()
		g.logger.Error().Err(err).Str("receiver_id", receiverID).Msg("send message failed")
		return nil, err
	}

	metrics.MessagesSent.Inc()
	return msg, nil
}

// Conversation returns the full history with the peer, both
// directions, ordered by creation time ascending. No pagination: the
// whole history is fetched each time, as the backing product does.
func (g *Gateway) Conversation(ctx context.Context, peerID string) ([]models.Message, error) {
	self, ok := g.sessions.Current(ctx)
	if !ok {
		return nil, backend.ErrAuthRequired
	}
	return g.be.ListConversation(ctx, self.ID, peerID)
}

// MarkRead flips the read flag on the given messages. Idempotent;
// already-read or unknown ids are no-ops.
func (g *Gateway) MarkRead(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return g.be.MarkMessagesRead(ctx, ids)
}

// MarkConversationRead marks every unread message from the peer to
// self as read.
func (g *Gateway) MarkConversationRead(ctx context.Context, peerID string) error {
	self, ok := g.sessions.Current(ctx)
	if !ok {
		return backend.ErrAuthRequired
	}
	return g.be.MarkConversationRead(ctx, peerID, self.ID)
}

// UnreadCount counts unread messages addressed to self. Degrades to
// zero on failure so badge rendering never breaks the screen.
func (g *Gateway) UnreadCount(ctx context.Context) int {
	self, ok := g.sessions.Current(ctx)
	if !ok {
		return 0
	}
	count, err := g.be.CountUnread(ctx, self.ID)
	if err != nil {
		g.logger.Warn().Err(err).Msg("unread count failed")
		return 0
	}
	return count
}

// Conversations groups all messages involving self by partner, newest
// first, with unread counts. Partner names come from the presence
// table when a record exists; otherwise the unknown-user sentinel is
// kept visible rather than synthesized away.
func (g *Gateway) Conversations(ctx context.Context) ([]models.Conversation, error) {
	self, ok := g.sessions.Current(ctx)
	if !ok {
		return nil, backend.ErrAuthRequired
	}

	msgs, err := g.be.ListMessagesInvolving(ctx, self.ID)
	if err != nil {
		return nil, err
	}

	var order []string
	byPartner := make(map[string]*models.Conversation)
	for _, msg := range msgs {
		partnerID := msg.SenderID
		if partnerID == self.ID {
			partnerID = msg.ReceiverID
		}

		conv, seen := byPartner[partnerID]
		if !seen {
			conv = &models.Conversation{PartnerID: partnerID, LastMessage: msg}
			byPartner[partnerID] = conv
			order = append(order, partnerID)
		}
		if msg.ReceiverID == self.ID && !msg.Read {
			conv.UnreadCount++
		}
	}

	out := make([]models.Conversation, 0, len(order))
	for _, partnerID := range order {
		conv := byPartner[partnerID]
		conv.PartnerName = models.UnknownUser
		if rec, err := g.be.GetPresence(ctx, partnerID); err == nil && rec != nil {
			conv.PartnerName = rec.DisplayName()
		}
		out = append(out, *conv)
	}
	return out, nil
}

// Delete removes a message row. Administrative escape hatch, not part
// of the conversation flow.
func (g *Gateway) Delete(ctx context.Context, messageID string) error {
	return g.be.DeleteMessage(ctx, messageID)
}

// SubscribeInbound registers fn for newly inserted messages addressed
// to self. At most one inbound subscription is active per gateway;
// resubscribing replaces the previous one. When no identity can be
// resolved the gateway stays unsubscribed, logging instead of failing,
// and the returned handle is a no-op.
func (g *Gateway) SubscribeInbound(ctx context.Context, fn func(models.Message)) *backend.Subscription {
	self, ok := g.sessions.Current(ctx)
	if !ok {
		g.logger.Warn().Msg("not authenticated, inbound subscription disabled")
		return backend.NoopSubscription()
	}
	selfID := self.ID

	inner, err := g.be.SubscribeChanges(ctx, backend.TableMessages, func(ev backend.ChangeEvent) {
		if ev.Type != backend.ChangeInsert {
			return
		}
		msg, err := ev.Message()
		if err != nil {
			g.logger.Warn().Err(err).Msg("undecodable message event")
			return
		}
		if msg.ReceiverID != selfID {
			return
		}
		metrics.MessagesReceived.Inc()
		fn(msg)
	})
	if err != nil {
		g.logger.Error().Err(err).Msg("inbound subscription failed")
		return backend.NoopSubscription()
	}

	metrics.ActiveSubscriptions.WithLabelValues(backend.TableMessages).Inc()
	sub := backend.NewSubscription(func() {
		inner.Close()
		metrics.ActiveSubscriptions.WithLabelValues(backend.TableMessages).Dec()
	})

	g.mu.Lock()
	if g.sub != nil {
		g.sub.Close()
	}
	g.sub = sub
	g.mu.Unlock()

	return sub
}

// Unsubscribe tears down the active inbound subscription, if any.
func (g *Gateway) Unsubscribe() {
	g.mu.Lock()
	sub := g.sub
	g.sub = nil
	g.mu.Unlock()
	sub.Close()
}
