package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"lobbi-trader/internal/agent"
	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/metrics"
	"lobbi-trader/internal/storage"
)

// Query limits.
const (
	DefaultLatestTrades = 10
	MaxLatestTrades     = 50
	DefaultLogs         = 50
	MaxLogs             = 200
	// DemoStartBalanceSol seeds the simulated balance shown in demo mode.
	DemoStartBalanceSol = 1.0
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// realTrades drops simulated demo-mint records.
func realTrades(trades []*domain.TradeRecord) []*domain.TradeRecord {
	out := make([]*domain.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if !domain.IsDemoMint(t.Mint) {
			out = append(out, t)
		}
	}
	return out
}

func (s *Server) trades(c *gin.Context) ([]*domain.TradeRecord, bool) {
	trades, err := s.deps.Ledger.ListTrades(c.Request.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list trades")
		errorResponse(c, http.StatusInternalServerError, "could not read trades")
		return nil, false
	}
	return realTrades(trades), true
}

func (s *Server) handleTrades(c *gin.Context) {
	trades, ok := s.trades(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleLatestTrades(c *gin.Context) {
	trades, ok := s.trades(c)
	if !ok {
		return
	}
	limit := queryLimit(c, DefaultLatestTrades, MaxLatestTrades)
	if len(trades) > limit {
		trades = trades[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleTradeQuotes(c *gin.Context) {
	if s.deps.Quotes == nil {
		errorResponse(c, http.StatusServiceUnavailable, "quote history not configured")
		return
	}
	samples, err := s.deps.Quotes.GetByTradeID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.log.Error().Err(err).Str("trade_id", c.Param("id")).Msg("read quote samples")
		errorResponse(c, http.StatusInternalServerError, "could not read quotes")
		return
	}
	if samples == nil {
		samples = []*domain.QuoteSample{}
	}
	c.JSON(http.StatusOK, gin.H{"quotes": samples})
}

func (s *Server) handlePnl(c *gin.Context) {
	trades, ok := s.trades(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, metrics.Compute(trades))
}

func (s *Server) handleExitBreakdown(c *gin.Context) {
	trades, ok := s.trades(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"exits": metrics.ByExit(trades)})
}

func (s *Server) handleBalance(c *gin.Context) {
	if w := s.deps.Wallet; w != nil && !w.Demo() {
		bal, err := w.Balance(c.Request.Context())
		if err != nil || bal == nil {
			s.log.Warn().Err(err).Msg("wallet balance")
			errorResponse(c, http.StatusBadGateway, "wallet balance unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"balanceSol": *bal, "demo": false})
		return
	}
	trades, ok := s.trades(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balanceSol": DemoStartBalanceSol + metrics.Compute(trades).TotalPnlSol,
		"demo":       true,
	})
}

func (s *Server) handleState(c *gin.Context) {
	st, err := s.deps.State.GetState(c.Request.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("read state")
		st = domain.IdleState(time.Now())
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleFilters(c *gin.Context) {
	if s.deps.Filters == nil {
		c.JSON(http.StatusOK, domain.DefaultFilters())
		return
	}
	f, err := s.deps.Filters()
	if err != nil {
		s.log.Error().Err(err).Msg("load filters")
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) handleLogs(c *gin.Context) {
	entries, err := s.deps.Activity.Recent(c.Request.Context(), queryLimit(c, DefaultLogs, MaxLogs))
	if err != nil {
		s.log.Error().Err(err).Msg("read activity")
		errorResponse(c, http.StatusInternalServerError, "could not read activity")
		return
	}
	if entries == nil {
		entries = []domain.ActivityEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries})
}

func (s *Server) desk(c *gin.Context) (Desk, bool) {
	if s.deps.Desk == nil {
		errorResponse(c, http.StatusServiceUnavailable, "trading desk not configured")
		return nil, false
	}
	return s.deps.Desk, true
}

func (s *Server) handleCandidates(c *gin.Context) {
	d, ok := s.desk(c)
	if !ok {
		return
	}
	cands, err := d.Candidates(c.Request.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("candidates")
		errorResponse(c, http.StatusBadGateway, "discovery failed")
		return
	}
	if cands == nil {
		cands = []agent.CandidateView{}
	}
	c.JSON(http.StatusOK, gin.H{"candidates": cands})
}

func (s *Server) handlePosition(c *gin.Context) {
	d, ok := s.desk(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	st, err := s.deps.State.GetState(ctx)
	if err != nil {
		st = domain.IdleState(time.Now())
	}
	pos, err := d.Position(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("position")
		errorResponse(c, http.StatusInternalServerError, "could not read position")
		return
	}
	resp := gin.H{"state": st, "openTrade": nil}
	if pos != nil {
		resp["openTrade"] = pos.Trade
		resp["quote"] = pos.Quote
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleBuy(c *gin.Context) {
	d, ok := s.desk(c)
	if !ok {
		return
	}
	var req agent.BuyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := d.Buy(c.Request.Context(), req)
	if err != nil {
		s.deskError(c, "buy", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "symbol": rec.Symbol, "tx": rec.TxBuy, "trade": rec})
}

func (s *Server) handleSell(c *gin.Context) {
	d, ok := s.desk(c)
	if !ok {
		return
	}
	rec, err := d.Sell(c.Request.Context())
	if err != nil {
		s.deskError(c, "sell", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "symbol": rec.Symbol, "pnlSol": rec.PnlSol, "tx": rec.TxSell, "trade": rec})
}

func (s *Server) deskError(c *gin.Context, op string, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, storage.ErrInvalidInput), errors.Is(err, agent.ErrOwnToken), errors.Is(err, agent.ErrSkip):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrOpenPositionExists), errors.Is(err, agent.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, agent.ErrNoPosition):
		status = http.StatusNotFound
	}
	ev := s.log.Warn()
	if status == http.StatusBadGateway {
		ev = s.log.Error()
	}
	ev.Err(err).Str("op", op).Int("status", status).Msg("desk operation failed")
	errorResponse(c, status, err.Error())
}

func queryLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
