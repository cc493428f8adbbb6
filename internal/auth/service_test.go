package auth

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-with-zain-hunzai/kekar-go/internal/backend"
	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
	"github.com/code-with-zain-hunzai/kekar-go/internal/session"
)

func newTestService(be backend.Backend) (*Service, *session.Memory) {
	snaps := session.NewMemory()
	return NewService(be, snaps, zerolog.Nop()), snaps
}

func TestSignUpValidatesParams(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(backend.NewMemory())

	cases := []SignUpParams{
		{Email: "not-an-email", Password: "long-enough", Name: "A"},
		{Email: "a@example.com", Password: "short", Name: "A"},
		{Email: "a@example.com", Password: "long-enough", Name: ""},
	}
	for _, p := range cases {
		_, err := svc.SignUp(ctx, p)
		assert.Error(t, err, "params %+v", p)
	}
}

func TestSignUpRemembersIdentity(t *testing.T) {
	ctx := context.Background()
	svc, snaps := newTestService(backend.NewMemory())

	ident, err := svc.SignUp(ctx, SignUpParams{
		Email: "alice@example.com", Password: "secret-password", Name: "Alice",
	})
	require.NoError(t, err)

	snap, ok := snaps.Load()
	require.True(t, ok)
	assert.Equal(t, ident.ID, snap.ID)
}

func TestCurrentReportsFalseWithoutSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(backend.NewMemory())

	ident, ok := svc.Current(ctx)
	assert.False(t, ok)
	assert.Nil(t, ident)
}

func TestCurrentReportsFalseWhenUnconfigured(t *testing.T) {
	svc, _ := newTestService(backend.Unconfigured{})
	_, ok := svc.Current(context.Background())
	assert.False(t, ok)
}

// flakyBackend simulates a backend whose identity endpoint is down.
type flakyBackend struct {
	backend.Unconfigured
}

func (flakyBackend) CurrentIdentity(context.Context) (*models.Identity, error) {
	return nil, &backend.RemoteError{Status: 503, Message: "unavailable"}
}

func TestCurrentFallsBackToSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, snaps := newTestService(flakyBackend{})

	_, ok := svc.Current(ctx)
	assert.False(t, ok)

	require.NoError(t, snaps.Save(models.Identity{ID: "u1", Email: "alice@example.com"}))

	ident, ok := svc.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", ident.ID)
}

func TestSignOutClearsSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, snaps := newTestService(backend.NewMemory())

	_, err := svc.SignUp(ctx, SignUpParams{
		Email: "alice@example.com", Password: "secret-password", Name: "Alice",
	})
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(ctx))

	_, ok := snaps.Load()
	assert.False(t, ok)
	_, ok = svc.Current(ctx)
	assert.False(t, ok)
}

func TestHandleCallbackExchangesTokens(t *testing.T) {
	ctx := context.Background()
	be := backend.NewMemory()
	alice, err := be.SignUp(ctx, "alice@example.com", "secret-password", "Alice")
	require.NoError(t, err)
	require.NoError(t, be.SignOut(ctx))

	svc, snaps := newTestService(be)
	ident, err := svc.HandleCallback(ctx,
		"kekarapp://auth/callback#access_token="+alice.ID+"&refresh_token=rt")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, ident.ID)

	snap, ok := snaps.Load()
	require.True(t, ok)
	assert.Equal(t, alice.ID, snap.ID)
}

func TestHandleCallbackRejectsBadURL(t *testing.T) {
	svc, _ := newTestService(backend.NewMemory())
	_, err := svc.HandleCallback(context.Background(), "kekarapp://auth/callback")
	assert.ErrorIs(t, err, ErrBadCallback)
}
