// Package config loads process settings from the environment and the
// trading filters from CONFIG_DIR/filters.json.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage and lock backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds every environment-driven setting.
type Config struct {
	DataDir   string `mapstructure:"data_dir"`
	ConfigDir string `mapstructure:"config_dir"`

	Storage     string        `mapstructure:"storage"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	LockBackend string        `mapstructure:"lock_backend"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`

	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	DexCacheTTL   time.Duration `mapstructure:"dex_cache_ttl"`

	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`

	SolanaRPCURL     string `mapstructure:"solana_rpc_url"`
	WalletPrivateKey string `mapstructure:"wallet_private_key"`
	DemoMode         bool   `mapstructure:"demo_mode"`

	BirdeyeAPIKey string `mapstructure:"birdeye_api_key"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	OpenAIModel     string `mapstructure:"openai_model"`

	OwnTokenMint string  `mapstructure:"lobbi_own_token_mint"`
	SolPriceUsd  float64 `mapstructure:"sol_price_usd"`

	ExitMode          string  `mapstructure:"exit_mode"`
	TrailPercent      float64 `mapstructure:"trail_percent"`
	ExitLiquidityDrop float64 `mapstructure:"exit_liquidity_drop"`

	PumpPortalWSURL string `mapstructure:"pumpportal_ws_url"`
	PriceStream     bool   `mapstructure:"price_stream"`

	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID int64  `mapstructure:"telegram_chat_id"`

	MetricsAddr string   `mapstructure:"metrics_addr"`
	APIAddr     string   `mapstructure:"api_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("config_dir", "./config")
	v.SetDefault("storage", BackendFile)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("lock_backend", BackendFile)
	v.SetDefault("lock_ttl", "15m")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("dex_cache_ttl", "0s")
	v.SetDefault("clickhouse_dsn", "")
	v.SetDefault("solana_rpc_url", "")
	v.SetDefault("wallet_private_key", "")
	v.SetDefault("demo_mode", false)
	v.SetDefault("birdeye_api_key", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("anthropic_model", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_model", "")
	v.SetDefault("lobbi_own_token_mint", "")
	v.SetDefault("sol_price_usd", 76.6)
	v.SetDefault("exit_mode", "advisor")
	v.SetDefault("trail_percent", 15.0)
	v.SetDefault("exit_liquidity_drop", 0.0)
	v.SetDefault("pumpportal_ws_url", "")
	v.SetDefault("price_stream", false)
	v.SetDefault("telegram_token", "")
	v.SetDefault("telegram_chat_id", 0)
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("api_addr", ":8080")
	v.SetDefault("cors_origins", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
}

// Load reads envFile when it exists, then the process environment.
// An empty envFile means ".env".
func Load(envFile string) (Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	c.LockBackend = strings.ToLower(strings.TrimSpace(c.LockBackend))
	c.ExitMode = strings.ToLower(strings.TrimSpace(c.ExitMode))
	c.SolanaRPCURL = strings.TrimSpace(c.SolanaRPCURL)
	c.WalletPrivateKey = strings.TrimSpace(c.WalletPrivateKey)
	c.OwnTokenMint = strings.TrimSpace(c.OwnTokenMint)

	var origins []string
	for _, o := range c.CORSOrigins {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	c.CORSOrigins = origins

	// Without chain access there is nothing to trade with.
	if c.SolanaRPCURL == "" || c.WalletPrivateKey == "" {
		c.DemoMode = true
	}
}

// Validate checks backend selections and their required settings.
func (c Config) Validate() error {
	switch c.Storage {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("STORAGE=postgres requires POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}

	switch c.LockBackend {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("LOCK_BACKEND=postgres requires POSTGRES_DSN")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("LOCK_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend)
	}

	if c.LockTTL <= 0 {
		return errors.New("LOCK_TTL must be positive")
	}
	if c.SolPriceUsd <= 0 {
		return errors.New("SOL_PRICE_USD must be positive")
	}
	return nil
}

// FiltersPath returns the filters file location.
func (c Config) FiltersPath() string {
	return filepath.Join(c.ConfigDir, FiltersFile)
}

// AdvisorConfigured reports whether any sell advisor key is set.
func (c Config) AdvisorConfigured() bool {
	return c.AnthropicAPIKey != "" || c.OpenAIAPIKey != ""
}
