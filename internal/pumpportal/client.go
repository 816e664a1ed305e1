// Package pumpportal talks to PumpPortal: the trade-local endpoint that builds
// unsigned swap transactions, and the websocket trade stream used as a live
// price source.
package pumpportal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lobbi-trader/internal/observability"
)

// DefaultTradeURL is the trade-local endpoint.
const DefaultTradeURL = "https://pumpportal.fun/api/trade-local"

// Trade actions.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// TradeRequest describes a swap for trade-local.
type TradeRequest struct {
	PublicKey        string
	Action           string
	Mint             string
	Amount           string // lamports, token units, or a percentage like "100%"
	DenominatedInSol bool
	SlippagePercent  float64
	PriorityFeeSol   float64
	Pool             string // defaults to "auto"
}

// TradeClient fetches serialized transactions from trade-local.
type TradeClient struct {
	url  string
	http *http.Client
}

// NewTradeClient creates a client. An empty url uses DefaultTradeURL.
func NewTradeClient(tradeURL string, client *http.Client) *TradeClient {
	if tradeURL == "" {
		tradeURL = DefaultTradeURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TradeClient{url: tradeURL, http: client}
}

// Transaction returns the unsigned VersionedTransaction bytes for req.
func (c *TradeClient) Transaction(ctx context.Context, req TradeRequest) (tx []byte, err error) {
	start := time.Now()
	defer func() {
		observability.RecordExternalCall("pumpportal", req.Action, time.Since(start).Seconds(), err)
	}()

	pool := req.Pool
	if pool == "" {
		pool = "auto"
	}
	form := url.Values{
		"publicKey":        {req.PublicKey},
		"action":           {req.Action},
		"mint":             {req.Mint},
		"amount":           {req.Amount},
		"denominatedInSol": {strconv.FormatBool(req.DenominatedInSol)},
		"slippage":         {strconv.FormatFloat(req.SlippagePercent, 'f', -1, 64)},
		"priorityFee":      {strconv.FormatFloat(req.PriorityFeeSol, 'f', -1, 64)},
		"pool":             {pool},
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pumpportal %s: %w", req.Action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pumpportal %s failed: %d %s", req.Action, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("pumpportal %s: empty transaction", req.Action)
	}
	return body, nil
}
