package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.BackendConfigured())
	assert.Equal(t, "kekarapp://auth/callback", cfg.RedirectURL)
	assert.Equal(t, "127.0.0.1:43110", cfg.CallbackAddr)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, "file", cfg.SnapshotStore)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("KEKAR_ENV", "production")
	t.Setenv("KEKAR_BACKEND_URL", "https://proj.supabase.co")
	t.Setenv("KEKAR_BACKEND_ANON_KEY", "anon-key")
	t.Setenv("KEKAR_HEARTBEAT_INTERVAL", "10s")
	t.Setenv("KEKAR_SNAPSHOT_STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.BackendConfigured())
	assert.Equal(t, 10*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, "memory", cfg.SnapshotStore)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("snapshot store", func(t *testing.T) {
		t.Setenv("KEKAR_SNAPSHOT_STORE", "cassandra")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("heartbeat interval", func(t *testing.T) {
		t.Setenv("KEKAR_HEARTBEAT_INTERVAL", "-5s")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestBackendConfiguredNeedsBothValues(t *testing.T) {
	t.Setenv("KEKAR_BACKEND_URL", "https://proj.supabase.co")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.BackendConfigured())
}
