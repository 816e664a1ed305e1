package reporting

import (
	"fmt"
	"strings"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/metrics"
)

// RenderCSV renders closed trades, one row each.
func RenderCSV(trades []*domain.TradeRecord) string {
	var sb strings.Builder

	sb.WriteString("id,mint,symbol,buy_timestamp,sell_timestamp,hold_seconds,")
	sb.WriteString("buy_sol,sell_sol,pnl_sol,return_pct,exit_kind,mcap_usd,mcap_at_sell_usd\n")

	for _, t := range trades {
		ret := 0.0
		if t.BuySol > 0 {
			ret = t.PnlSol / t.BuySol * 100
		}
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%d,%.6f,%.6f,%.6f,%.2f,%s,%s,%s\n",
			t.ID,
			t.Mint,
			csvField(t.Symbol),
			t.BuyTimestamp,
			t.SellTimestamp,
			t.HoldSeconds,
			t.BuySol,
			t.SellSol,
			t.PnlSol,
			ret,
			metrics.ExitKind(t),
			optional(t.McapUsd),
			optional(t.McapAtSellUsd),
		))
	}

	return sb.String()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.0f", *v)
}

// csvField quotes values holding a separator or quote.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
