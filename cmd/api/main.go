// Command api serves the dashboard REST API and the manual trading desk over
// the same backends as the agent.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"lobbi-trader/internal/api"
	"lobbi-trader/internal/app"
	"lobbi-trader/internal/config"
	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/logging"
	"lobbi-trader/internal/observability"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	srv := api.NewServer(api.Config{
		Addr:        cfg.APIAddr,
		CORSOrigins: cfg.CORSOrigins,
		Release:     os.Getenv("GIN_MODE") != "debug",
	}, api.Deps{
		Ledger:   a.Ledger,
		State:    a.State,
		Activity: a.Activity,
		Quotes:   a.Quotes,
		// Re-read per request so edits to filters.json show without a restart.
		Filters: func() (domain.Filters, error) { return config.LoadFilters(cfg.FiltersPath()) },
		Wallet:  a.Executor,
		Desk:    a.Desk,
		Metrics: observability.Handler(),
		Log:     log,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("api server")
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("api shutdown")
	}
	log.Info().Msg("shutdown complete")
}
