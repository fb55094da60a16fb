package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 5.0, cfg.FeeAmount)
	assert.Equal(t, 720*time.Hour, cfg.FeeInterval)
	assert.True(t, cfg.FeeSchedulerEnabled)
	assert.Equal(t, uint32(5), cfg.BreakerMaxFailures)
	assert.Empty(t, cfg.ExemptOrigins())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/ledger")
	t.Setenv("FEE_AMOUNT", "7.5")
	t.Setenv("EXEMPT_DEBIT_ORIGINS", "actor:billing, actor:collections")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 7.5, cfg.FeeAmount)
	assert.Equal(t, []string{"actor:billing", "actor:collections"}, cfg.ExemptOrigins())
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
