package reporting

import (
	"fmt"
	"strings"
	"time"

	"lobbi-trader/internal/metrics"
)

// RenderMarkdown renders the report as Markdown.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Trading Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Demo {
		sb.WriteString("Includes simulated demo trades.\n\n")
	}

	sb.WriteString("## Summary\n\n")
	o := r.Overall
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Closed Trades | %d |\n", o.TradeCount))
	sb.WriteString(fmt.Sprintf("| Wins / Losses | %d / %d |\n", o.Wins, o.Losses))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.1f%% |\n", o.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Total PnL (SOL) | %.4f |\n", o.TotalPnlSol))
	sb.WriteString(fmt.Sprintf("| SOL Deployed | %.4f |\n", o.TotalBuySol))
	sb.WriteString(fmt.Sprintf("| Mean / Median PnL | %.4f / %.4f |\n", o.MeanPnlSol, o.MedianPnlSol))
	sb.WriteString(fmt.Sprintf("| P10 / P90 PnL | %.4f / %.4f |\n", o.P10PnlSol, o.P90PnlSol))
	sb.WriteString(fmt.Sprintf("| Best / Worst | %.4f / %.4f |\n", o.BestPnlSol, o.WorstPnlSol))
	sb.WriteString(fmt.Sprintf("| Stddev | %.4f |\n", o.StddevPnlSol))
	sb.WriteString(fmt.Sprintf("| Mean Return | %.2f%% |\n", o.MeanReturnPct))
	sb.WriteString(fmt.Sprintf("| Max Drawdown (SOL) | %.4f |\n", o.MaxDrawdownSol))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", o.MaxConsecutiveLosses))
	sb.WriteString(fmt.Sprintf("| Avg Hold | %s |\n", formatHold(o.AvgHoldSeconds)))
	sb.WriteString("\n")

	if r.OpenTrade != nil {
		sb.WriteString(fmt.Sprintf("Open position: %s (%s), %.4f SOL since %s\n\n",
			r.OpenTrade.Symbol, r.OpenTrade.Mint, r.OpenTrade.BuySol, r.OpenTrade.BuyTimestamp))
	}

	if r.Integrity != nil {
		sb.WriteString("## Data Integrity\n\n")
		if r.Integrity.OK() {
			sb.WriteString(fmt.Sprintf("All %d records verified.\n\n", r.Integrity.TotalTrades))
		} else {
			for _, issue := range r.Integrity.Issues() {
				sb.WriteString(fmt.Sprintf("- %s\n", issue))
			}
			sb.WriteString("\n")
		}
	}

	writeGroups(&sb, "By Exit", "Exit", r.ByExit)
	writeGroups(&sb, "By Day", "Day", r.ByDay)

	sb.WriteString("## Replay\n\n")
	if len(r.Replays) == 0 {
		sb.WriteString("No replay requested.\n\n")
	}
	for _, rp := range r.Replays {
		c := rp.Comparison
		sb.WriteString(fmt.Sprintf("### %s\n\n", rp.Mode))
		sb.WriteString(fmt.Sprintf("Chain: `%s`\n\n", strings.Join(rp.Chain, " → ")))
		sb.WriteString(fmt.Sprintf("Replayed %d trades, %d exited. Realized %.4f SOL, replay %.4f SOL (%+.4f). Better %d, worse %d.\n\n",
			c.Trades, c.Exited, c.RealizedPnlSol, c.ReplayPnlSol, c.ReplayPnlSol-c.RealizedPnlSol, c.Better, c.Worse))
		if len(rp.Results) == 0 {
			continue
		}
		sb.WriteString("| Symbol | Samples | Realized | Replay | Rule | Held |\n")
		sb.WriteString("|--------|---------|----------|--------|------|------|\n")
		for _, res := range rp.Results {
			replay := "n/a"
			if res.PnlSol != nil {
				replay = fmt.Sprintf("%.4f", *res.PnlSol)
			}
			rule := res.Rule
			if !res.Exited {
				rule = "(no exit)"
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %.4f | %s | %s | %s |\n",
				res.Symbol, res.Samples, res.RealizedPnlSol, replay, rule, formatHold(float64(res.HoldSeconds))))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeGroups(sb *strings.Builder, title, col string, groups []metrics.Group) {
	sb.WriteString(fmt.Sprintf("## %s\n\n", title))
	if len(groups) == 0 {
		sb.WriteString("No closed trades.\n\n")
		return
	}
	sb.WriteString(fmt.Sprintf("| %s | Trades | WinRate | Total PnL | Mean PnL | Avg Hold |\n", col))
	sb.WriteString("|------|--------|---------|-----------|----------|----------|\n")
	for _, g := range groups {
		sb.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %.4f | %.4f | %s |\n",
			g.Key, g.TradeCount, g.WinRate*100, g.TotalPnlSol, g.MeanPnlSol, formatHold(g.AvgHoldSeconds)))
	}
	sb.WriteString("\n")
}

func formatHold(seconds float64) string {
	return (time.Duration(seconds) * time.Second).Round(time.Second).String()
}
