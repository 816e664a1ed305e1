// Package app wires configuration into stores, market clients, the executor
// and the agent. Both binaries build from here so they share one backend.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lobbi-trader/internal/advisor"
	"lobbi-trader/internal/agent"
	"lobbi-trader/internal/config"
	"lobbi-trader/internal/discovery"
	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/executor"
	"lobbi-trader/internal/ledger"
	"lobbi-trader/internal/market"
	"lobbi-trader/internal/notify"
	"lobbi-trader/internal/pumpportal"
	"lobbi-trader/internal/solana"
	"lobbi-trader/internal/storage"
	chstore "lobbi-trader/internal/storage/clickhouse"
	"lobbi-trader/internal/storage/file"
	"lobbi-trader/internal/storage/memory"
	"lobbi-trader/internal/storage/migrations"
	pgstore "lobbi-trader/internal/storage/postgres"
	redisstore "lobbi-trader/internal/storage/redis"
	"lobbi-trader/internal/strategy"
)

// Lock names shared by every process on one backend.
const (
	lockName     = "lobbi_cycle"
	redisLockKey = "lobbi:cycle_lock"
	dexCachePfx  = "lobbi:dex:"
)

// App holds the wired components. Close releases connections.
type App struct {
	Config  config.Config
	Filters domain.Filters

	Ledger   storage.TradeLedger
	State    storage.StateStore
	Activity storage.ActivityLog
	Quotes   storage.QuoteStore
	Lock     storage.Lock

	Executor executor.Executor
	Agent    *agent.Agent
	Desk     *agent.Desk

	log     zerolog.Logger
	closers []func()
}

// OpenStores connects the ledger, state, activity, lock and quote stores
// without any market or wallet clients.
func OpenStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (a *App, err error) {
	a = &App{Config: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()
	if _, err = a.openStores(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Build connects every backend named by cfg.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (a *App, err error) {
	a = &App{Config: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	rdb, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	var dexOpts []market.DexScreenerOption
	if rdb != nil && cfg.DexCacheTTL > 0 {
		dexOpts = append(dexOpts, market.WithDexCache(redisstore.NewCache(rdb, dexCachePfx), cfg.DexCacheTTL))
	}
	dex := market.NewDexScreener(dexOpts...)
	birdeye := market.NewBirdeye(cfg.BirdeyeAPIKey)
	if !birdeye.Enabled() {
		log.Info().Msg("no BIRDEYE_API_KEY, holder stats and token list disabled (degraded)")
	}

	prices := market.PriceChain{dex, birdeye}
	if cfg.PriceStream {
		scfg := pumpportal.DefaultStreamConfig()
		if cfg.PumpPortalWSURL != "" {
			scfg.URL = cfg.PumpPortalWSURL
		}
		stream, err := pumpportal.Dial(ctx, &scfg, cfg.SolPriceUsd, log)
		if err != nil {
			log.Warn().Err(err).Msg("price stream unavailable, polling quotes only")
		} else {
			a.closers = append(a.closers, func() { _ = stream.Close() })
			prices = append(market.PriceChain{stream}, prices...)
		}
	}

	var rpc *solana.HTTPClient
	var curves agent.CurveReader
	if cfg.SolanaRPCURL != "" {
		rpc = solana.NewHTTPClient(cfg.SolanaRPCURL)
		curves = solana.CurveReader{RPC: rpc}
	}
	if a.Executor, err = newExecutor(cfg, rpc, log); err != nil {
		return nil, err
	}

	adv := advisor.New(advisor.Config{
		AnthropicKey:   cfg.AnthropicAPIKey,
		AnthropicModel: cfg.AnthropicModel,
		OpenAIKey:      cfg.OpenAIAPIKey,
		OpenAIModel:    cfg.OpenAIModel,
	}, log)
	exit, err := strategy.FromConfig(strategy.Config{
		Mode:             cfg.ExitMode,
		MaxHold:          strategy.DefaultMaxHold,
		TrailPct:         cfg.TrailPercent,
		LiquidityDropPct: cfg.ExitLiquidityDrop,
	}, adv)
	if err != nil {
		return nil, err
	}

	a.Agent, err = agent.New(agent.Options{
		Ledger:       a.Ledger,
		State:        a.State,
		Lock:         a.Lock,
		Activity:     a.Activity,
		Quotes:       a.Quotes,
		Discoverer:   discovery.NewDiscoverer(dex, log, discovery.WithTokenLister(birdeye)),
		Executor:     a.Executor,
		Prices:       prices,
		Stats:        dex,
		Mcap:         dex,
		Holders:      birdeye,
		Curves:       curves,
		Notifier:     notify.New(cfg.TelegramToken, cfg.TelegramChatID, log),
		Exit:         exit,
		Filters:      a.Filters,
		OwnTokenMint: cfg.OwnTokenMint,
		SolPriceUsd:  cfg.SolPriceUsd,
		Log:          log,
	})
	if err != nil {
		return nil, err
	}
	a.Desk = agent.NewDesk(a.Agent)

	log.Info().
		Str("storage", cfg.Storage).
		Str("lock", cfg.LockBackend).
		Bool("clickhouse", cfg.ClickhouseDSN != "").
		Bool("demo", a.Executor.Demo()).
		Str("exit_mode", cfg.ExitMode).
		Msg("components wired")
	return a, nil
}

// openStores fills the store fields. The redis client is returned for the
// market cache and is nil when redis is not configured.
func (a *App) openStores(ctx context.Context) (rdb *goredis.Client, err error) {
	cfg, log := a.Config, a.log
	if a.Filters, err = config.LoadFilters(cfg.FiltersPath()); err != nil {
		return nil, err
	}
	if err = os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	var pool *pgstore.Pool
	if cfg.Storage == config.BackendPostgres || cfg.LockBackend == config.BackendPostgres {
		if pool, err = pgstore.NewPool(ctx, cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err = migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	if cfg.RedisAddr != "" && (cfg.LockBackend == config.BackendRedis || cfg.DexCacheTTL > 0) {
		if rdb, err = redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	switch cfg.Storage {
	case config.BackendMemory:
		a.Ledger = ledger.New(memory.NewTradeRepository(), log)
		a.State = memory.NewStateStore()
		a.Activity = memory.NewActivityLog()
	case config.BackendPostgres:
		a.Ledger = pgstore.NewTradeLedger(pool, log)
		a.State = pgstore.NewStateStore(pool)
		a.Activity = file.NewActivityLog(cfg.DataDir)
	default:
		a.Ledger = ledger.New(file.NewTradeRepository(cfg.DataDir, log), log)
		a.State = file.NewStateStore(cfg.DataDir)
		a.Activity = file.NewActivityLog(cfg.DataDir)
	}

	owner := lockOwner()
	switch cfg.LockBackend {
	case config.BackendMemory:
		a.Lock = memory.NewLock(owner, cfg.LockTTL, nil)
	case config.BackendPostgres:
		a.Lock = pgstore.NewLock(pool, lockName, owner, cfg.LockTTL)
	case config.BackendRedis:
		a.Lock = redisstore.NewLock(rdb, redisLockKey, owner, cfg.LockTTL)
	default:
		a.Lock = file.NewLock(cfg.DataDir, owner, cfg.LockTTL)
	}

	if cfg.ClickhouseDSN != "" {
		conn, cerr := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if cerr != nil {
			return nil, fmt.Errorf("clickhouse: %w", cerr)
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		a.Quotes = chstore.NewQuoteStore(conn)
	} else {
		a.Quotes = memory.NewQuoteStore()
	}

	return rdb, nil
}

func newExecutor(cfg config.Config, rpc *solana.HTTPClient, log zerolog.Logger) (executor.Executor, error) {
	if cfg.DemoMode || rpc == nil {
		log.Info().Msg("demo mode, swaps are simulated")
		return executor.NewDemo(), nil
	}
	wallet, err := solana.LoadWallet(cfg.WalletPrivateKey)
	if err != nil {
		return nil, err
	}
	return executor.NewLive(wallet, rpc, pumpportal.NewTradeClient("", nil), log)
}

// lockOwner identifies this process in the shared lock.
func lockOwner() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Close releases connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ShutdownTimeout bounds graceful shutdown in the binaries.
const ShutdownTimeout = 30 * time.Second
