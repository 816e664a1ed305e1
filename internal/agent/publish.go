package agent

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/narrative"
)

// publish stores s, stamping the time when unset. Failures are logged only:
// the state snapshot is advisory.
func (a *Agent) publish(ctx context.Context, s domain.AgentState) {
	if s.At == "" {
		s.At = domain.FormatTimestamp(a.now())
	}
	if err := a.state.SetState(ctx, s); err != nil {
		a.log.Warn().Err(err).Str("kind", string(s.Kind)).Msg("publish state")
	}
}

func (a *Agent) publishBought(ctx context.Context, t *domain.TradeRecord, holderCount *int) {
	a.publish(ctx, domain.AgentState{
		Kind:              domain.StateBought,
		Message:           fmt.Sprintf("Bought %s", t.Symbol),
		ChosenMint:        t.Mint,
		ChosenSymbol:      t.Symbol,
		ChosenMcapUsd:     t.McapUsd,
		ChosenHolderCount: holderCount,
		ChosenReason:      t.Why,
		LastTx:            t.TxBuy,
	})
}

func (a *Agent) publishSold(ctx context.Context, t *domain.TradeRecord) {
	a.publish(ctx, domain.AgentState{
		Kind:         domain.StateSold,
		Message:      narrative.SoldMessage(t.Symbol, t.PnlSol),
		ChosenMint:   t.Mint,
		ChosenSymbol: t.Symbol,
		ChosenReason: t.WhySold,
		LastTx:       t.TxSell,
	})
}

func (a *Agent) appendActivity(ctx context.Context, e domain.ActivityEntry) {
	if e.At == "" {
		e.At = domain.FormatTimestamp(a.now())
	}
	if err := a.activity.Append(ctx, e); err != nil {
		a.log.Warn().Err(err).Str("type", string(e.Type)).Msg("append activity")
	}
}

func (a *Agent) notifyf(ctx context.Context, format string, args ...any) {
	if err := a.notifier.Notify(ctx, fmt.Sprintf(format, args...)); err != nil {
		a.log.Debug().Err(err).Msg("notify")
	}
}

func formatSol(v float64) string {
	return decimal.NewFromFloat(v).Round(4).String()
}
