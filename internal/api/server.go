// Package api serves the dashboard REST API over the ledger, state and
// activity stores, plus the manual trading desk.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lobbi-trader/internal/agent"
	"lobbi-trader/internal/domain"
	"lobbi-trader/internal/storage"
)

// Desk is the manual trading surface.
type Desk interface {
	Buy(ctx context.Context, req agent.BuyRequest) (*domain.TradeRecord, error)
	Sell(ctx context.Context) (*domain.TradeRecord, error)
	Position(ctx context.Context) (*agent.PositionView, error)
	Candidates(ctx context.Context) ([]agent.CandidateView, error)
}

// Wallet reports the live balance.
type Wallet interface {
	Balance(ctx context.Context) (*float64, error)
	Demo() bool
}

// Config configures the HTTP server.
type Config struct {
	Addr        string
	CORSOrigins []string // empty allows all origins
	Release     bool
}

// Deps are the stores and services behind the routes. Quotes, Wallet, Desk
// and Metrics are optional; their routes answer 503 when unset.
type Deps struct {
	Ledger   storage.TradeLedger
	State    storage.StateStore
	Activity storage.ActivityLog
	Quotes   storage.QuoteStore
	Filters  func() (domain.Filters, error)
	Wallet   Wallet
	Desk     Desk
	Metrics  http.Handler
	Log      zerolog.Logger
}

// Server is the API HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	router     *gin.Engine
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer builds the router.
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: router,
		log:    deps.Log.With().Str("component", "api").Logger(),
	}

	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}

	api := s.router.Group("/api")
	{
		api.GET("/trades", s.handleTrades)
		api.GET("/trades/latest", s.handleLatestTrades)
		api.GET("/trades/:id/quotes", s.handleTradeQuotes)
		api.GET("/pnl", s.handlePnl)
		api.GET("/pnl/exits", s.handleExitBreakdown)
		api.GET("/balance", s.handleBalance)
		api.GET("/lobbi/state", s.handleState)
		api.GET("/filters", s.handleFilters)
		api.GET("/logs", s.handleLogs)
	}

	desk := api.Group("/agent")
	{
		desk.GET("/candidates", s.handleCandidates)
		desk.GET("/position", s.handlePosition)
		desk.POST("/buy", s.handleBuy)
		desk.POST("/sell", s.handleSell)
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Candidate discovery can take several feed round trips.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.log.Info().Str("addr", s.cfg.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := s.log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"ok": false, "error": message})
}
