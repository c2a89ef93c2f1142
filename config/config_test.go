package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("AUTHBRIDGE_ISSUER", "https://issuer.example")
	t.Setenv("AUTHBRIDGE_CLIENT_ID", "cli")
	t.Setenv("AUTHBRIDGE_STORE_PATH", "/tmp/entries.json")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.example", cfg.Issuer)
	assert.Equal(t, "cli", cfg.ClientID)
	assert.Equal(t, "/tmp/entries.json", cfg.StorePath)
}

func TestFromEnvDefaultsAreEmpty(t *testing.T) {
	t.Setenv("AUTHBRIDGE_ISSUER", "")
	t.Setenv("AUTHBRIDGE_CLIENT_ID", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.Issuer)
	assert.Empty(t, cfg.ClientID)
}
