// Command report writes a performance report of the trade ledger, with
// optional exit-strategy replays over the recorded hold quotes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lobbi-trader/internal/advisor"
	"lobbi-trader/internal/analysis"
	"lobbi-trader/internal/app"
	"lobbi-trader/internal/config"
	"lobbi-trader/internal/logging"
	"lobbi-trader/internal/reporting"
	"lobbi-trader/internal/strategy"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env file")
	outputDir := flag.String("output-dir", "reports", "Output directory for generated files")
	replay := flag.String("replay", "", "Comma-separated exit modes to replay (thresholds,trailing)")
	includeDemo := flag.Bool("include-demo", false, "Include simulated demo trades")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	a, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open stores")
	}
	defer a.Close()

	chains, err := replayChains(cfg, *replay)
	if err != nil {
		log.Fatal().Err(err).Msg("replay modes")
	}

	gen := reporting.NewGenerator(a.Ledger, a.Quotes, nil)
	report, err := gen.Generate(ctx, reporting.Options{
		IncludeDemo: *includeDemo,
		Replays:     chains,
		Plan:        analysis.PlanHoldDefault(a.Filters),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("generate report")
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create output dir")
	}
	files := map[string]string{
		"REPORT.md":  reporting.RenderMarkdown(report),
		"trades.csv": reporting.RenderCSV(report.Trades),
	}
	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("write report")
		}
		fmt.Printf("Generated: %s\n", path)
	}

	if issues := report.Integrity.Issues(); len(issues) > 0 {
		log.Warn().Int("issues", len(issues)).Msg("ledger integrity problems, see REPORT.md")
	}
	log.Info().
		Int("trades", report.Overall.TradeCount).
		Float64("pnl_sol", report.Overall.TotalPnlSol).
		Int("replays", len(report.Replays)).
		Msg("report written")
}

// replayChains builds one chain per mode. The advisor is never called
// during a replay, so advisor mode replays only its time ceiling.
func replayChains(cfg config.Config, modes string) (map[string]strategy.Chain, error) {
	if strings.TrimSpace(modes) == "" {
		return nil, nil
	}
	out := make(map[string]strategy.Chain)
	for _, m := range strings.Split(modes, ",") {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		chain, err := strategy.FromConfig(strategy.Config{
			Mode:             m,
			MaxHold:          strategy.DefaultMaxHold,
			TrailPct:         cfg.TrailPercent,
			LiquidityDropPct: cfg.ExitLiquidityDrop,
		}, advisor.Noop{})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m, err)
		}
		out[m] = chain
	}
	return out, nil
}
