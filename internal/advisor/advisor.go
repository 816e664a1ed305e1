// Package advisor asks a language model whether to sell the open position.
package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/observability"
)

// Default models.
const (
	DefaultAnthropicModel = "claude-3-5-haiku-20241022"
	DefaultOpenAIModel    = "gpt-4o-mini"
)

const (
	maxTokens = 64
	timeout   = 20 * time.Second
)

// Advice is a sell recommendation.
type Advice struct {
	ShouldSell bool
	Reason     string
}

// SellAdvisor recommends whether to exit. Implementations never fail:
// any error means hold.
type SellAdvisor interface {
	AskShouldSell(ctx context.Context, symbol, why string, q domain.PositionQuote) Advice
	// Enabled is false when no model is configured.
	Enabled() bool
}

// Completer sends a single-turn prompt and returns the text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLM adapts a Completer into a SellAdvisor.
type LLM struct {
	provider string
	c        Completer
	log      zerolog.Logger
}

// NewLLM wraps c. provider labels logs and metrics.
func NewLLM(provider string, c Completer, log zerolog.Logger) *LLM {
	return &LLM{
		provider: provider,
		c:        c,
		log:      log.With().Str("component", "advisor").Str("provider", provider).Logger(),
	}
}

// Enabled reports true.
func (l *LLM) Enabled() bool { return true }

// AskShouldSell asks the model. Errors are logged and read as hold.
func (l *LLM) AskShouldSell(ctx context.Context, symbol, why string, q domain.PositionQuote) Advice {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	text, err := l.c.Complete(ctx, Prompt(symbol, why, q))
	observability.RecordExternalCall(l.provider, "advise", time.Since(start).Seconds(), err)
	if err != nil {
		l.log.Warn().Err(err).Str("symbol", symbol).Msg("advisor call failed, holding")
		return Advice{}
	}
	adv := ParseAdvice(text)
	l.log.Debug().Str("symbol", symbol).Str("reply", text).Bool("sell", adv.ShouldSell).Msg("advisor replied")
	return adv
}

// Prompt renders the sell question.
func Prompt(symbol, why string, q domain.PositionQuote) string {
	pnl := 0.0
	if q.UnrealizedPnlPercent != nil {
		pnl = *q.UnrealizedPnlPercent
	}
	holdMin := q.HoldSeconds / 60

	return fmt.Sprintf(`You are Lobbi, an autonomous AI that trades Solana memecoins. You hold %s.

Why we bought: %s

Current: PnL %.1f%%, held %dm. No fixed TP/SL, you decide.

Should we SELL now? Reply with exactly "SELL" or "HOLD". If SELL, add one short reason after a comma.`,
		symbol, why, pnl, holdMin)
}

// ParseAdvice reads "SELL, reason" or "HOLD". Anything else is hold.
func ParseAdvice(text string) Advice {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELL") {
		return Advice{}
	}
	adv := Advice{ShouldSell: true}
	if _, reason, ok := strings.Cut(trimmed, ","); ok {
		adv.Reason = strings.TrimSpace(reason)
	}
	return adv
}

// Noop always holds.
type Noop struct{}

// AskShouldSell returns hold.
func (Noop) AskShouldSell(context.Context, string, string, domain.PositionQuote) Advice {
	return Advice{}
}

// Enabled reports false.
func (Noop) Enabled() bool { return false }

// Config selects a provider. Anthropic wins when both keys are set.
type Config struct {
	AnthropicKey   string
	AnthropicModel string
	OpenAIKey      string
	OpenAIModel    string
}

// New builds the configured advisor, or Noop without keys.
func New(cfg Config, log zerolog.Logger) SellAdvisor {
	switch {
	case cfg.AnthropicKey != "":
		return NewLLM("anthropic", NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel), log)
	case cfg.OpenAIKey != "":
		return NewLLM("openai", NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel), log)
	default:
		return Noop{}
	}
}
