// Package orders sizes signals into order requests and tracks the orders
// created from them until the broker reports a final state.
//
// A Manager is owned by the dispatcher and is not safe for concurrent use.
package orders

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// MinConfidence is the lowest signal confidence that is acted upon
const MinConfidence = 0.5

// ErrOrderNotFound is returned for unknown or already finished order ids
var ErrOrderNotFound = errors.New("order not found")

var hundred = decimal.NewFromInt(100)

// Manager converts signals to orders and keeps the capital bookkeeping
type Manager struct {
	capital         decimal.Decimal
	available       decimal.Decimal
	positionSizePct decimal.Decimal

	pending map[string]*models.Order
	history []*models.Order
	seq     uint64
	now     func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithClock overrides the clock used for ids and timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager starting with capital available
func NewManager(capital, positionSizePercent decimal.Decimal, opts ...Option) *Manager {
	m := &Manager{
		capital:         capital,
		available:       capital,
		positionSizePct: positionSizePercent,
		pending:         make(map[string]*models.Order),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	log.Info().Str("capital", capital.StringFixed(2)).Msg("Order manager initialized")
	return m
}

// ProcessSignal turns a signal into an order request, or returns nil when
// the signal should not be acted on. position is the current holding for
// the signal's symbol and is only used to size exits.
func (m *Manager) ProcessSignal(signal models.Signal, currentPrice decimal.Decimal, position *models.Position) *OrderRequest {
	logger := log.With().Str("symbol", signal.Symbol).Str("signal", string(signal.Type)).Logger()

	if signal.Confidence < MinConfidence {
		logger.Debug().Float64("confidence", signal.Confidence).Msg("Skipping low confidence signal")
		return nil
	}
	if !currentPrice.IsPositive() {
		logger.Warn().Str("price", currentPrice.String()).Msg("Skipping signal without a usable price")
		return nil
	}

	switch signal.Type {
	case models.SignalBuy, models.SignalAddPosition:
		shares := m.CalculatePositionSize(currentPrice)
		if shares.IsZero() {
			logger.Warn().Str("available", m.available.StringFixed(2)).Msg("No capital available")
			return nil
		}
		return &OrderRequest{
			Symbol:         signal.Symbol,
			Side:           models.SideBuy,
			Quantity:       shares,
			OrderType:      models.OrderTypeMarket,
			ReferencePrice: currentPrice,
			Intent:         signal.Type,
			Reason:         signal.Reason,
		}

	case models.SignalSell:
		if position == nil || !position.Quantity.IsPositive() {
			logger.Warn().Msg("Sell signal without a held quantity")
			return nil
		}
		return &OrderRequest{
			Symbol:         signal.Symbol,
			Side:           models.SideSell,
			Quantity:       position.Quantity,
			OrderType:      models.OrderTypeMarket,
			ReferencePrice: currentPrice,
			Intent:         signal.Type,
			Reason:         signal.Reason,
		}
	}

	logger.Warn().Msg("Unknown signal type")
	return nil
}

// CalculatePositionSize returns the share count for a new entry:
// min(available * pct / 100, available) / price, rounded to 2 decimals
func (m *Manager) CalculatePositionSize(price decimal.Decimal) decimal.Decimal {
	if !m.available.IsPositive() || !price.IsPositive() {
		return decimal.Zero
	}

	positionValue := m.available.Mul(m.positionSizePct).Div(hundred)
	positionValue = decimal.Min(positionValue, m.available)

	shares := positionValue.Div(price).Round(2)
	if !shares.IsPositive() {
		return decimal.Zero
	}
	return shares
}

// CreateOrder validates the request, assigns an id, reserves capital for
// buys and starts tracking the order as pending
func (m *Manager) CreateOrder(req *OrderRequest) (*models.Order, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", ErrInvalidOrderRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := m.now()
	m.seq++
	orderID := fmt.Sprintf("ORD_%s_%s_%d", now.Format("20060102_150405.000000000"), req.Symbol, m.seq)

	order := &models.Order{
		OrderID:        orderID,
		Symbol:         req.Symbol,
		Side:           req.Side,
		OrderType:      req.OrderType,
		Quantity:       req.Quantity,
		Price:          req.LimitPrice,
		StopPrice:      req.StopPrice,
		ReferencePrice: req.ReferencePrice,
		Intent:         req.Intent,
		Reason:         req.Reason,
		Status:         models.OrderStatusCreated,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}

	// Market buys reserve at the sizing price; limit buys at the limit.
	if order.Side == models.SideBuy {
		price := req.ReferencePrice
		if req.LimitPrice != nil {
			price = *req.LimitPrice
		}
		order.ReservedCapital = order.Quantity.Mul(price)
		m.available = m.available.Sub(order.ReservedCapital)
	}

	m.pending[orderID] = order

	log.Info().Str("order_id", orderID).Str("side", string(order.Side)).
		Str("quantity", order.Quantity.String()).Str("symbol", order.Symbol).
		Str("reserved", order.ReservedCapital.StringFixed(2)).Msg("Created order")

	return order, nil
}

// MarkSubmitted records that the broker accepted the order
func (m *Manager) MarkSubmitted(orderID, brokerOrderID string) error {
	order, ok := m.pending[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	order.BrokerOrderID = brokerOrderID
	order.Status = models.OrderStatusSubmitted
	order.UpdatedAt = m.now()
	return nil
}

// MarkCancelRequested records that a cancel was sent. The order stays
// pending with its reservation until a fill or the cancel is confirmed.
func (m *Manager) MarkCancelRequested(orderID string) error {
	order, ok := m.pending[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	order.Status = models.OrderStatusCancelRequested
	order.UpdatedAt = m.now()
	return nil
}

// MarkFilled finishes an order. The reservation is dropped without being
// returned, since the broker's cash already reflects the fill.
func (m *Manager) MarkFilled(orderID string) (*models.Order, error) {
	return m.finish(orderID, models.OrderStatusFilled, "", false)
}

// MarkCancelled finishes an order and releases its reservation
func (m *Manager) MarkCancelled(orderID, reason string) (*models.Order, error) {
	return m.finish(orderID, models.OrderStatusCancelled, reason, true)
}

// MarkRejected finishes an order and releases its reservation
func (m *Manager) MarkRejected(orderID, reason string) (*models.Order, error) {
	return m.finish(orderID, models.OrderStatusRejected, reason, true)
}

func (m *Manager) finish(orderID string, status models.OrderStatus, reason string, release bool) (*models.Order, error) {
	order, ok := m.pending[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	delete(m.pending, orderID)

	if release {
		m.available = m.available.Add(order.ReservedCapital)
	}
	order.Status = status
	order.StatusReason = reason
	order.UpdatedAt = m.now()
	m.history = append(m.history, order)

	log.Info().Str("order_id", orderID).Str("status", string(status)).Str("reason", reason).Msg("Order finished")
	return order, nil
}

// SyncCapital resets capital to the broker's cash, keeping outstanding
// reservations deducted from what is available
func (m *Manager) SyncCapital(cash decimal.Decimal) {
	m.capital = cash
	m.available = cash.Sub(m.Reserved())
}

// Reserved is the capital held by pending orders
func (m *Manager) Reserved() decimal.Decimal {
	total := decimal.Zero
	for _, o := range m.pending {
		total = total.Add(o.ReservedCapital)
	}
	return total
}

// AvailableCapital returns capital not yet reserved
func (m *Manager) AvailableCapital() decimal.Decimal {
	return m.available
}

// Capital returns the last synced capital
func (m *Manager) Capital() decimal.Decimal {
	return m.capital
}

// HasPending reports whether symbol has an unfinished order
func (m *Manager) HasPending(symbol string) bool {
	for _, o := range m.pending {
		if o.Symbol == symbol {
			return true
		}
	}
	return false
}

// Pending returns the pending order with the given id
func (m *Manager) Pending(orderID string) (*models.Order, bool) {
	o, ok := m.pending[orderID]
	return o, ok
}

// PendingIDs returns the ids of pending orders in ascending order
func (m *Manager) PendingIDs() []string {
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PendingOrders returns copies of the pending orders ordered by id
func (m *Manager) PendingOrders() []models.Order {
	out := make([]models.Order, 0, len(m.pending))
	for _, id := range m.PendingIDs() {
		out = append(out, *m.pending[id])
	}
	return out
}

// StalePending returns ids of pending orders created more than ttl ago
// that have no cancel outstanding
func (m *Manager) StalePending(ttl time.Duration) []string {
	if ttl <= 0 {
		return nil
	}
	cutoff := m.now().Add(-ttl)
	var ids []string
	for _, id := range m.PendingIDs() {
		o := m.pending[id]
		if o.Status != models.OrderStatusCancelRequested && o.SubmittedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// ExpiredCancels returns ids of cancel-requested orders that have had no
// fill for at least grace
func (m *Manager) ExpiredCancels(grace time.Duration) []string {
	cutoff := m.now().Add(-grace)
	var ids []string
	for _, id := range m.PendingIDs() {
		o := m.pending[id]
		if o.Status == models.OrderStatusCancelRequested && !o.UpdatedAt.After(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// History returns copies of finished orders, oldest first
func (m *Manager) History() []models.Order {
	out := make([]models.Order, len(m.history))
	for i, o := range m.history {
		out[i] = *o
	}
	return out
}
