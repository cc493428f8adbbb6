package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

func TestFileRoundTrip(t *testing.T) {
	store := NewFile(t.TempDir())

	_, ok := store.Load()
	assert.False(t, ok)

	ident := models.Identity{
		ID:        "u1",
		Email:     "alice@example.com",
		FullName:  "Alice",
		AvatarURL: "https://cdn.example.com/a.png",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ident))

	got, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, ident, *got)
}

func TestFileSaveOverwrites(t *testing.T) {
	store := NewFile(t.TempDir())

	require.NoError(t, store.Save(models.Identity{ID: "u1"}))
	require.NoError(t, store.Save(models.Identity{ID: "u2"}))

	got, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "u2", got.ID)
}

func TestFileClear(t *testing.T) {
	store := NewFile(t.TempDir())

	// Clearing a store that never saved is fine.
	require.NoError(t, store.Clear())

	require.NoError(t, store.Save(models.Identity{ID: "u1"}))
	require.NoError(t, store.Clear())

	_, ok := store.Load()
	assert.False(t, ok)
}

func TestFileCreatesNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deep", "nested")
	store := NewFile(dir)
	require.NoError(t, store.Save(models.Identity{ID: "u1"}))

	_, ok := store.Load()
	assert.True(t, ok)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()

	_, ok := store.Load()
	assert.False(t, ok)

	require.NoError(t, store.Save(models.Identity{ID: "u1"}))
	got, ok := store.Load()
	require.True(t, ok)
	assert.Equal(t, "u1", got.ID)

	require.NoError(t, store.Clear())
	_, ok = store.Load()
	assert.False(t, ok)
}
