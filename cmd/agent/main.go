// Command agent runs the trading cycle: discover, buy, hold, sell, repeat.
// It also serves Prometheus metrics on METRICS_ADDR.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"lobbi-trader/internal/app"
	"lobbi-trader/internal/config"
	"lobbi-trader/internal/logging"
	"lobbi-trader/internal/observability"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env file")
	once := flag.Bool("once", false, "Run a single cycle and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		select {
		case sig := <-sigCh:
			log.Warn().Str("signal", sig.String()).Msg("second signal, exiting now")
			os.Exit(1)
		case <-time.After(app.ShutdownTimeout):
			log.Warn().Msg("graceful shutdown timed out, exiting")
			os.Exit(1)
		case <-done:
		}
	}()

	metrics := startMetricsServer(cfg.MetricsAddr, log)

	if *once {
		a.Agent.ClearStale(ctx)
		out := a.Agent.RunCycle(ctx)
		log.Info().Str("outcome", string(out)).Msg("cycle finished")
	} else if err := a.Agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("agent stopped")
	}
	close(done)

	if metrics != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metrics.Shutdown(sctx)
		scancel()
	}
	log.Info().Msg("shutdown complete")
}

func startMetricsServer(addr string, log zerolog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server")
		}
	}()
	return srv
}
