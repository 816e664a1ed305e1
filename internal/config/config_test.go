package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lobbi-trader/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, BackendFile, cfg.Storage)
	assert.Equal(t, BackendFile, cfg.LockBackend)
	assert.Equal(t, 15*time.Minute, cfg.LockTTL)
	assert.Equal(t, 76.6, cfg.SolPriceUsd)
	assert.Equal(t, "advisor", cfg.ExitMode)
	assert.Equal(t, 15.0, cfg.TrailPercent)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.True(t, cfg.DemoMode, "no RPC or wallet means demo")
	assert.False(t, cfg.AdvisorConfigured())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE", "Postgres")
	t.Setenv("POSTGRES_DSN", "postgres://lobbi@localhost/lobbi")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOCK_TTL", "5m")
	t.Setenv("SOLANA_RPC_URL", "https://rpc.example")
	t.Setenv("WALLET_PRIVATE_KEY", "secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://lobbi.example")
	t.Setenv("EXIT_MODE", "TRAILING")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Storage)
	assert.Equal(t, BackendRedis, cfg.LockBackend)
	assert.Equal(t, 5*time.Minute, cfg.LockTTL)
	assert.False(t, cfg.DemoMode)
	assert.Equal(t, []string{"http://localhost:5173", "https://lobbi.example"}, cfg.CORSOrigins)
	assert.Equal(t, "trailing", cfg.ExitMode)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
	assert.True(t, cfg.AdvisorConfigured())
}

func TestLoad_DotEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LOBBI_OWN_TOKEN_MINT=OwnMint111pump\nSOL_PRICE_USD=150\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LOBBI_OWN_TOKEN_MINT")
		os.Unsetenv("SOL_PRICE_USD")
	})

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "OwnMint111pump", cfg.OwnTokenMint)
	assert.Equal(t, 150.0, cfg.SolPriceUsd)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown storage", map[string]string{"STORAGE": "s3"}},
		{"postgres without dsn", map[string]string{"STORAGE": "postgres"}},
		{"redis lock without addr", map[string]string{"LOCK_BACKEND": "redis"}},
		{"zero sol price", map[string]string{"SOL_PRICE_USD": "0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestLoadFilters_MissingFileUsesDefaults(t *testing.T) {
	f, err := LoadFilters(filepath.Join(t.TempDir(), FiltersFile))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultFilters(), f)
}

func TestLoadFilters_PartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), FiltersFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"minVolumeUsd": 12000, "maxCandidates": 5, "loopDelayMs": 60000}`), 0o600))

	f, err := LoadFilters(path)
	require.NoError(t, err)
	assert.Equal(t, 12000.0, f.MinVolumeUsd)
	assert.Equal(t, 5, f.MaxCandidates)
	assert.Equal(t, int64(60000), f.LoopDelayMs)
	assert.Equal(t, domain.DefaultFilters().MaxMcapUsd, f.MaxMcapUsd)
}

func TestLoadFilters_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), FiltersFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"minMcapUsd": 90000}`), 0o600))

	_, err := LoadFilters(path)
	assert.ErrorIs(t, err, domain.ErrInvalidFilters)
}

func TestLoadFilters_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), FiltersFile)
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := LoadFilters(path)
	assert.Error(t, err)
}
