package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-with-zain-hunzai/kekar-go/internal/auth"
	"github.com/code-with-zain-hunzai/kekar-go/internal/backend"
	"github.com/code-with-zain-hunzai/kekar-go/internal/chat"
	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
	"github.com/code-with-zain-hunzai/kekar-go/internal/presence"
	"github.com/code-with-zain-hunzai/kekar-go/internal/session"
)

type viewRig struct {
	be    *backend.Memory
	view  *View
	alice models.Identity
	bob   models.Identity
	carol models.Identity
}

// newViewRig builds a view signed in as alice. Other users' messages
// are injected straight into the backend, which pushes them through
// the change feed like a remote insert would.
func newViewRig(t *testing.T) *viewRig {
	t.Helper()
	ctx := context.Background()
	be := backend.NewMemory()

	var users []models.Identity
	for _, u := range []struct{ email, name string }{
		{"alice@example.com", "Alice"},
		{"bob@example.com", "Bob"},
		{"carol@example.com", "Carol"},
	} {
		ident, err := be.SignUp(ctx, u.email, "secret-password", u.name)
		require.NoError(t, err)
		users = append(users, *ident)
	}
	_, err := be.ExchangeSession(ctx, users[0].ID, "")
	require.NoError(t, err)

	sessions := auth.NewService(be, session.NewMemory(), zerolog.Nop())
	chatGW := chat.NewGateway(be, sessions, zerolog.Nop())
	presGW := presence.NewGateway(be, sessions, zerolog.Nop(), time.Hour)

	return &viewRig{
		be:    be,
		view:  NewView(chatGW, presGW, sessions, zerolog.Nop()),
		alice: users[0],
		bob:   users[1],
		carol: users[2],
	}
}

func (r *viewRig) inject(t *testing.T, from, to models.Identity, content string) models.Message {
	t.Helper()
	msg, err := r.be.InsertMessage(context.Background(), models.Message{
		SenderID: from.ID, ReceiverID: to.ID, Content: content,
	})
	require.NoError(t, err)
	return *msg
}

func TestOpenLoadsRosterAndGoesOnline(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)

	require.NoError(t, r.be.UpsertPresence(ctx, models.PresenceRecord{
		UserID: r.bob.ID, Status: models.StatusOnline, LastSeen: time.Now(),
	}))

	r.view.Open(ctx)
	defer r.view.Close(ctx)

	roster := r.view.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, r.bob.ID, roster[0].UserID)

	rec, err := r.be.GetPresence(ctx, r.alice.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.StatusOnline, rec.Status)
}

func TestSelectPeerLoadsHistoryAndMarksRead(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.inject(t, r.alice, r.bob, "hi")
	r.inject(t, r.bob, r.alice, "hey")
	r.inject(t, r.carol, r.alice, "elsewhere")

	r.view.Open(ctx)
	defer r.view.Close(ctx)
	r.view.SelectPeer(ctx, r.bob.ID)

	msgs := r.view.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, "hey", msgs[1].Content)
	assert.Equal(t, r.bob.ID, r.view.Selected())

	// Bob's conversation is read; carol's message stays unread.
	count, err := r.be.CountUnread(ctx, r.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInboundMessageAppendsAndMarksRead(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	defer r.view.Close(ctx)
	r.view.SelectPeer(ctx, r.bob.ID)

	var appended int
	r.view.SetOnAppend(func() { appended++ })

	r.inject(t, r.bob, r.alice, "ping")

	msgs := r.view.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ping", msgs[0].Content)
	assert.Equal(t, 1, appended)

	count, err := r.be.CountUnread(ctx, r.alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestInboundDeduplicatesByID(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	defer r.view.Close(ctx)
	r.view.SelectPeer(ctx, r.bob.ID)

	msg := r.inject(t, r.bob, r.alice, "once")
	// A reconnecting feed can replay an event it already delivered.
	r.view.applyInbound(ctx, msg)
	r.view.applyInbound(ctx, msg)

	assert.Len(t, r.view.Messages(), 1)
}

func TestInboundIgnoresUnselectedConversations(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	defer r.view.Close(ctx)
	r.view.SelectPeer(ctx, r.bob.ID)

	r.inject(t, r.carol, r.alice, "from carol")

	assert.Empty(t, r.view.Messages())

	// Not rendered means not marked read either.
	count, err := r.be.CountUnread(ctx, r.alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSelectPeerReplacesInboundSubscription(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	defer r.view.Close(ctx)

	r.view.SelectPeer(ctx, r.bob.ID)
	r.view.SelectPeer(ctx, r.carol.ID)

	r.inject(t, r.bob, r.alice, "stale peer")
	assert.Empty(t, r.view.Messages())

	r.inject(t, r.carol, r.alice, "current peer")
	msgs := r.view.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "current peer", msgs[0].Content)
}

func TestClearPeerStopsDelivery(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	defer r.view.Close(ctx)
	r.view.SelectPeer(ctx, r.bob.ID)
	r.view.ClearPeer()

	assert.Empty(t, r.view.Selected())

	r.inject(t, r.bob, r.alice, "after clear")
	assert.Empty(t, r.view.Messages())
}

func TestSendReplacesEchoWithServerRow(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	defer r.view.Close(ctx)
	r.view.SelectPeer(ctx, r.bob.ID)

	require.NoError(t, r.view.Send(ctx, "  hello  "))

	msgs := r.view.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, r.alice.ID, msgs[0].SenderID)
	assert.False(t, strings.HasPrefix(msgs[0].ID, "local-"), "echo must be replaced by the stored row")
}

func TestSendRequiresSelectedPeer(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	defer r.view.Close(ctx)

	assert.ErrorIs(t, r.view.Send(ctx, "hello"), ErrNoPeer)
	assert.ErrorIs(t, r.view.Send(ctx, "   "), chat.ErrEmptyMessage)
}

func TestSendFailureKeepsEchoVisible(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	defer r.view.Close(ctx)

	// Selecting self makes the backend reject the send after the echo
	// is already on screen.
	r.view.SelectPeer(ctx, r.alice.ID)

	err := r.view.Send(ctx, "to myself")
	assert.ErrorIs(t, err, chat.ErrSelfMessage)

	msgs := r.view.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0].ID, "local-"))
}

func TestPresenceOverlayReplacesNotDuplicates(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	defer r.view.Close(ctx)

	require.NoError(t, r.be.UpsertPresence(ctx, models.PresenceRecord{
		UserID: r.bob.ID, Status: models.StatusOnline, LastSeen: time.Now(),
	}))
	require.NoError(t, r.be.UpsertPresence(ctx, models.PresenceRecord{
		UserID: r.bob.ID, Status: models.StatusOffline, LastSeen: time.Now(),
	}))

	roster := r.view.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, models.StatusOffline, roster[0].Status)
}

func TestCloseGoesOfflineAndStopsDelivery(t *testing.T) {
	ctx := context.Background()
	r := newViewRig(t)
	r.view.Open(ctx)
	r.view.SelectPeer(ctx, r.bob.ID)

	require.NoError(t, r.view.Close(ctx))

	rec, err := r.be.GetPresence(ctx, r.alice.ID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, models.StatusOffline, rec.Status)

	r.inject(t, r.bob, r.alice, "after close")
	assert.Empty(t, r.view.Messages())
}
