package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/trogers1052/brot-trading-bot/internal/bot"
	"github.com/trogers1052/brot-trading-bot/internal/database"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

const defaultLimit = 100

// Store is the read and watchlist surface of the database used by handlers
type Store interface {
	GetWatchlist() ([]*models.WatchlistEntry, error)
	GetWatchlistEntry(symbol string) (*models.WatchlistEntry, error)
	UpsertWatchlistEntry(w *models.WatchlistEntry) error
	DeleteWatchlistEntry(symbol string) error
	SetWatchlistEnabled(symbol string, enabled bool) error
	GetOrdersByStatus(statuses ...models.OrderStatus) ([]*models.Order, error)
	GetAllPositions() (map[string]*models.Position, error)
	GetPositionBySymbol(symbol string) (*models.Position, error)
	GetFillsBySymbol(symbol string, limit int) ([]*models.Fill, error)
	GetLatestPriceBar(symbol string) (*models.PriceBar, error)
	GetAccount() (*models.AccountInfo, error)
	GetTradeLog(limit int) ([]*models.TradeLogEntry, error)
	GetTradeLogBySymbol(symbol string, limit int) ([]*models.TradeLogEntry, error)
	GetTradeSummary() (*models.TradeSummary, error)
	Ping() error
}

// EventPublisher announces watchlist changes
type EventPublisher interface {
	PublishSymbolAdded(ctx context.Context, symbol string) error
	PublishSymbolRemoved(ctx context.Context, symbol string) error
}

// Dispatcher exposes the trading loop
type Dispatcher interface {
	Status() bot.Status
	RunCycle(ctx context.Context) (bot.CycleResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store      Store
	producer   EventPublisher
	dispatcher Dispatcher
}

// NewHandler creates a new Handler. producer and dispatcher may be nil.
func NewHandler(store Store, producer EventPublisher, dispatcher Dispatcher) *Handler {
	return &Handler{
		store:      store,
		producer:   producer,
		dispatcher: dispatcher,
	}
}

// GetStatus handles GET /status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		http.Error(w, "dispatcher not running", http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, h.dispatcher.Status())
}

// RunCycle handles POST /cycle
func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		http.Error(w, "dispatcher not running", http.StatusServiceUnavailable)
		return
	}

	result, err := h.dispatcher.RunCycle(r.Context())
	if errors.Is(err, bot.ErrCycleInProgress) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetWatchlist handles GET /watchlist
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.GetWatchlist()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, entries)
}

// GetWatchlistEntry handles GET /watchlist/{symbol}
func (h *Handler) GetWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(mux.Vars(r)["symbol"])

	entry, err := h.store.GetWatchlistEntry(symbol)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// AddToWatchlist handles POST /watchlist
func (h *Handler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
		Notes  string `json:"notes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	symbol := normalizeSymbol(req.Symbol)
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	entry := &models.WatchlistEntry{
		Symbol:  symbol,
		Enabled: true,
		Notes:   req.Notes,
	}
	if err := h.store.UpsertWatchlistEntry(entry); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishSymbolAdded(r.Context(), symbol); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to publish symbol added event")
		}
	}

	respondJSON(w, http.StatusCreated, entry)
}

// RemoveFromWatchlist handles DELETE /watchlist/{symbol}
func (h *Handler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(mux.Vars(r)["symbol"])

	err := h.store.DeleteWatchlistEntry(symbol)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishSymbolRemoved(r.Context(), symbol); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to publish symbol removed event")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetWatchlistEnabled handles PUT /watchlist/{symbol}
func (h *Handler) SetWatchlistEnabled(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(mux.Vars(r)["symbol"])

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, "enabled is required", http.StatusBadRequest)
		return
	}

	err := h.store.SetWatchlistEnabled(symbol, *req.Enabled)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	entry, err := h.store.GetWatchlistEntry(symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// GetOrders handles GET /orders?status=SUBMITTED,FILLED.
// Without a status filter the open orders are returned.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	statuses := []models.OrderStatus{models.OrderStatusCreated, models.OrderStatusSubmitted, models.OrderStatusCancelRequested}
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = statuses[:0]
		for _, s := range strings.Split(raw, ",") {
			status := models.OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
			if !validStatus(status) {
				http.Error(w, "unknown order status "+s, http.StatusBadRequest)
				return
			}
			statuses = append(statuses, status)
		}
	}

	orders, err := h.store.GetOrdersByStatus(statuses...)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, orders)
}

// GetPositions handles GET /positions
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.store.GetAllPositions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now()
	out := make([]*models.Position, 0, len(positions))
	for _, p := range positions {
		p.RefreshDaysHeld(now)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })

	respondJSON(w, http.StatusOK, out)
}

// GetPosition handles GET /positions/{symbol}
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(mux.Vars(r)["symbol"])

	position, err := h.store.GetPositionBySymbol(symbol)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	position.RefreshDaysHeld(time.Now())

	respondJSON(w, http.StatusOK, position)
}

// GetFills handles GET /fills?symbol=AAPL&limit=50
func (h *Handler) GetFills(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	fills, err := h.store.GetFillsBySymbol(symbol, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, fills)
}

// GetLatestBar handles GET /bars/{symbol}/latest
func (h *Handler) GetLatestBar(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(mux.Vars(r)["symbol"])

	bar, err := h.store.GetLatestPriceBar(symbol)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, bar)
}

// GetAccount handles GET /account
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.store.GetAccount()
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "no account snapshot received yet", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// GetTrades handles GET /trades?symbol=AAPL&limit=50
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	var (
		trades []*models.TradeLogEntry
		err    error
	)
	if symbol := normalizeSymbol(r.URL.Query().Get("symbol")); symbol != "" {
		trades, err = h.store.GetTradeLogBySymbol(symbol, limit)
	} else {
		trades, err = h.store.GetTradeLog(limit)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, trades)
}

// GetReport handles GET /report
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.GetTradeSummary()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(); err != nil {
		log.Warn().Err(err).Msg("Health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// parseLimit reads the limit query parameter, writing a 400 when it is
// malformed
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func validStatus(s models.OrderStatus) bool {
	switch s {
	case models.OrderStatusCreated, models.OrderStatusSubmitted, models.OrderStatusFilled,
		models.OrderStatusCancelled, models.OrderStatusRejected, models.OrderStatusCancelRequested:
		return true
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
