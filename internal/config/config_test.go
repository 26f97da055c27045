package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Chat.DeletePageSize)
	assert.Equal(t, 500, cfg.Chat.BatchLimit)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPortForms(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	t.Setenv("PORT", "127.0.0.1:9090")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)

	t.Setenv("PORT", "bad port")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadChatOverrides(t *testing.T) {
	t.Setenv("CHAT_DELETE_PAGE_SIZE", "25")
	t.Setenv("CHAT_BATCH_LIMIT", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Chat.DeletePageSize)
	assert.Equal(t, 50, cfg.Chat.BatchLimit)
}

func TestLoadRejectsBadChatValues(t *testing.T) {
	t.Setenv("CHAT_DELETE_PAGE_SIZE", "abc")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CHAT_DELETE_PAGE_SIZE", "0")
	_, err = Load()
	require.Error(t, err)

	// Page size beyond the batch limit can never commit a page.
	t.Setenv("CHAT_DELETE_PAGE_SIZE", "600")
	t.Setenv("CHAT_BATCH_LIMIT", "500")
	_, err = Load()
	assert.Error(t, err)
}
