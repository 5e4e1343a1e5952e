package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "https://graph.microsoft.com/v1.0", cfg.Graph.BaseURL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10000, cfg.Cache.MaxSize)
	assert.Empty(t, cfg.Cache.Backend, "кеш по умолчанию выключен")
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENRICHMENT_CACHE_BACKEND", "memory")
	t.Setenv("ENRICHMENT_CACHE_TTL_MIN", "5")

	cfg := New()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestValidateRequiresDataverseCredentials(t *testing.T) {
	cfg := New()
	cfg.Dataverse.ClientID = ""
	cfg.Dataverse.ClientSecret = ""

	assert.Error(t, cfg.Validate())
}

func TestValidatePassesWithCredentials(t *testing.T) {
	t.Setenv("DATAVERSE_CLIENT_ID", "test-client")
	t.Setenv("DATAVERSE_CLIENT_SECRET", "test-secret")

	cfg := New()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownCacheBackend(t *testing.T) {
	t.Setenv("DATAVERSE_CLIENT_ID", "test-client")
	t.Setenv("DATAVERSE_CLIENT_SECRET", "test-secret")
	t.Setenv("ENRICHMENT_CACHE_BACKEND", "memcached")

	cfg := New()
	assert.Error(t, cfg.Validate())
}
