package api

// server.go — HTTP read models and control endpoints for the dashboard.
// Readers serve snapshots of in-memory state; control posts route to the
// coordinator, the safety ledger and the position scanner.

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/updown/internal/activity"
	"github.com/alejandrodnm/updown/internal/bot"
	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/feed"
	"github.com/alejandrodnm/updown/internal/positions"
	"github.com/alejandrodnm/updown/internal/redemption"
	"github.com/alejandrodnm/updown/internal/safety"
)

// Server exposes the JSON API.
type Server struct {
	coordinator *bot.Coordinator
	ledger      *safety.Ledger
	bus         *activity.Bus
	feed        *feed.Feed
	queue       *redemption.Queue
	discovery   *positions.Discovery
	proxyAddr   func() string

	http *http.Server
}

// NewServer builds the server on addr. proxyAddr resolves the Safe wallet
// for the redemptions view (may return "").
func NewServer(addr string, coordinator *bot.Coordinator, ledger *safety.Ledger,
	bus *activity.Bus, f *feed.Feed, queue *redemption.Queue,
	discovery *positions.Discovery, proxyAddr func() string) *Server {

	s := &Server{
		coordinator: coordinator,
		ledger:      ledger,
		bus:         bus,
		feed:        f,
		queue:       queue,
		discovery:   discovery,
		proxyAddr:   proxyAddr,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/activities", s.handleActivities)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/decisions", s.handleDecisions)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/btc-price", s.handlePrice)
	mux.HandleFunc("GET /api/redemptions", s.handleRedemptions)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("POST /api/bot/start", s.handleStart)
	mux.HandleFunc("POST /api/bot/stop", s.handleStop)
	mux.HandleFunc("POST /api/bot/scan-now", s.handleScanNow)
	mux.HandleFunc("POST /api/killswitch", s.handleKillSwitch)
	mux.HandleFunc("POST /api/scan-positions", s.handleScanPositions)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving the API.
func (s *Server) ListenAndServe() error {
	slog.Info("api: listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.coordinator.Status())
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.bus.Activities(limitParam(r)))
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.bus.Trades(limitParam(r)))
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.bus.Decisions(limitParam(r)))
}

// statsResponse aggregates win/loss counts. No P&L beyond this.
type statsResponse struct {
	TradeCount int     `json:"tradeCount"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Spent      float64 `json:"spentDollars"`
	LossTotal  float64 `json:"lossDollars"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap := s.ledger.Snapshot()
	writeJSON(w, statsResponse{
		TradeCount: snap.DailyTradeCount,
		Wins:       snap.DailyWinCount,
		Losses:     snap.DailyLossCount,
		Spent:      snap.DailySpent,
		LossTotal:  snap.DailyLossDollars,
	})
}

type priceResponse struct {
	domain.PriceQuote
	Context domain.PriceContext `json:"context"`
}

func (s *Server) handlePrice(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, priceResponse{
		PriceQuote: s.feed.Latest(),
		Context:    s.feed.Context(),
	})
}

type redemptionsResponse struct {
	Pending       []domain.PendingRedemption `json:"pending"`
	History       []domain.PendingRedemption `json:"history"`
	SafeAddress   string                     `json:"safeAddress,omitempty"`
	TotalRedeemed int                        `json:"totalRedeemed"`
	TotalLost     int                        `json:"totalLost"`
}

func (s *Server) handleRedemptions(w http.ResponseWriter, _ *http.Request) {
	redeemed, lost := s.queue.Totals()
	writeJSON(w, redemptionsResponse{
		Pending:       s.queue.Pending(),
		History:       s.queue.History(),
		SafeAddress:   s.proxyAddr(),
		TotalRedeemed: redeemed,
		TotalLost:     lost,
	})
}

func (s *Server) handlePositions(w http.ResponseWriter, _ *http.Request) {
	scan := s.discovery.LastScan()
	if scan == nil {
		writeJSON(w, map[string]any{"scanned": false})
		return
	}
	writeJSON(w, scan)
}

func (s *Server) handleStart(w http.ResponseWriter, _ *http.Request) {
	s.coordinator.Start()
	writeJSON(w, map[string]bool{"isRunning": true})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.coordinator.Stop()
	writeJSON(w, map[string]bool{"isRunning": false})
}

func (s *Server) handleScanNow(w http.ResponseWriter, r *http.Request) {
	go s.coordinator.Tick(context.WithoutCancel(r.Context()))
	writeJSON(w, map[string]string{"status": "scanning"})
}

func (s *Server) handleKillSwitch(w http.ResponseWriter, _ *http.Request) {
	v := s.ledger.ToggleKillSwitch()
	writeJSON(w, map[string]bool{"killSwitch": v})
}

func (s *Server) handleScanPositions(w http.ResponseWriter, r *http.Request) {
	scan := s.discovery.Scan(r.Context())
	writeJSON(w, scan)
}

func limitParam(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 50
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 50
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("api: encode failed", "err", err)
	}
}
