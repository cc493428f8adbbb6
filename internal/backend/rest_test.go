package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationFilter(t *testing.T) {
	got := conversationFilter("a1", "b2")
	assert.Equal(t, "(and(sender_id.eq.a1,receiver_id.eq.b2),and(sender_id.eq.b2,receiver_id.eq.a1))", got)
}

func TestInvolvingFilter(t *testing.T) {
	assert.Equal(t, "(sender_id.eq.u1,receiver_id.eq.u1)", involvingFilter("u1"))
}

func TestIDListFilter(t *testing.T) {
	assert.Equal(t, "in.(m1,m2,m3)", idListFilter([]string{"m1", "m2", "m3"}))
	assert.Equal(t, "in.(m1)", idListFilter([]string{"m1"}))
}

func TestParseContentRangeTotal(t *testing.T) {
	total, err := parseContentRangeTotal("0-0/42")
	require.NoError(t, err)
	assert.Equal(t, 42, total)

	total, err = parseContentRangeTotal("*/0")
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	for _, header := range []string{"", "0-0", "0-0/", "0-0/*", "0-0/x"} {
		_, err := parseContentRangeTotal(header)
		assert.Error(t, err, "header %q", header)
	}
}

func TestRealtimeURL(t *testing.T) {
	assert.Equal(t,
		"wss://proj.supabase.co/realtime/v1/websocket?apikey=anon",
		realtimeURL("https://proj.supabase.co", "anon"))
	assert.Equal(t,
		"ws://localhost:54321/realtime/v1/websocket?apikey=k",
		realtimeURL("http://localhost:54321", "k"))
}
