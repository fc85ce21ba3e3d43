package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trogers1052/brot-trading-bot/internal/database"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// Store is the part of the database the pipeline reads and writes
type Store interface {
	CreateOrder(o *models.Order) error
	GetOrderByID(orderID string) (*models.Order, error)
	UpdateOrderStatus(orderID string, status models.OrderStatus, reason string) error
	GetAllPositions() (map[string]*models.Position, error)
	GetAccount() (*models.AccountInfo, error)
	FilledOrderIDs(orderIDs []string) (map[string]bool, error)
}

// Publisher sends order requests to the execution service
type Publisher interface {
	PublishOrderSubmitted(ctx context.Context, order *models.Order) error
	PublishOrderCancelRequested(ctx context.Context, orderID, symbol string) error
}

// Pipeline is a Broker that hands orders to the execution service over
// Kafka and reads holdings from the snapshots stored by the consumers.
// The execution service echoes the order id, so it doubles as the broker id.
type Pipeline struct {
	store     Store
	publisher Publisher
	now       func() time.Time
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithClock overrides the clock used to age positions
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a Pipeline
func NewPipeline(store Store, publisher Publisher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{store: store, publisher: publisher, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlaceOrder records the order and publishes it. A publish failure leaves
// the order REJECTED.
func (p *Pipeline) PlaceOrder(ctx context.Context, order *models.Order) (string, error) {
	if err := p.store.CreateOrder(order); err != nil {
		return "", fmt.Errorf("failed to record order: %w", err)
	}

	if err := p.publisher.PublishOrderSubmitted(ctx, order); err != nil {
		if uerr := p.store.UpdateOrderStatus(order.OrderID, models.OrderStatusRejected, err.Error()); uerr != nil {
			log.Error().Err(uerr).Str("order_id", order.OrderID).Msg("Failed to mark order rejected")
		}
		return "", fmt.Errorf("failed to publish order: %w", err)
	}

	if err := p.store.UpdateOrderStatus(order.OrderID, models.OrderStatusSubmitted, ""); err != nil {
		log.Error().Err(err).Str("order_id", order.OrderID).Msg("Failed to mark order submitted")
	}
	return order.OrderID, nil
}

// CancelOrder asks the execution service to cancel an order. The order
// stays CANCEL_REQUESTED so a fill that races the cancel is still seen.
func (p *Pipeline) CancelOrder(ctx context.Context, orderID string) error {
	order, err := p.store.GetOrderByID(orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.Status.Terminal() {
		return fmt.Errorf("order %s is already %s", orderID, order.Status)
	}

	if err := p.publisher.PublishOrderCancelRequested(ctx, orderID, order.Symbol); err != nil {
		return fmt.Errorf("failed to publish cancel: %w", err)
	}
	if err := p.store.UpdateOrderStatus(orderID, models.OrderStatusCancelRequested, "cancel requested"); err != nil {
		return fmt.Errorf("failed to mark order cancel requested: %w", err)
	}
	return nil
}

// ConfirmCancel marks a cancel-requested order CANCELLED. It fails when
// the order has filled in the meantime.
func (p *Pipeline) ConfirmCancel(_ context.Context, orderID string) error {
	order, err := p.store.GetOrderByID(orderID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	switch order.Status {
	case models.OrderStatusCancelled:
		return nil
	case models.OrderStatusCancelRequested:
	default:
		return fmt.Errorf("order %s is %s, not awaiting cancel", orderID, order.Status)
	}

	filled, err := p.store.FilledOrderIDs([]string{orderID})
	if err != nil {
		return fmt.Errorf("failed to check fills: %w", err)
	}
	if filled[orderID] {
		return fmt.Errorf("order %s filled after cancel request", orderID)
	}

	if err := p.store.UpdateOrderStatus(orderID, models.OrderStatusCancelled, "cancel confirmed"); err != nil {
		return fmt.Errorf("failed to mark order cancelled: %w", err)
	}
	return nil
}

// GetPositions returns the last position snapshot with holding periods
// aged to the current time
func (p *Pipeline) GetPositions(_ context.Context) (map[string]*models.Position, error) {
	positions, err := p.store.GetAllPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	now := p.now()
	for _, pos := range positions {
		pos.RefreshDaysHeld(now)
	}
	return positions, nil
}

// GetAccountInfo returns the last account snapshot, or ErrNoSnapshot
// before the first one arrives
func (p *Pipeline) GetAccountInfo(_ context.Context) (*models.AccountInfo, error) {
	account, err := p.store.GetAccount()
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// FilledOrders reports which orders have fills and marks them FILLED
func (p *Pipeline) FilledOrders(_ context.Context, orderIDs []string) (map[string]bool, error) {
	filled, err := p.store.FilledOrderIDs(orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check fills: %w", err)
	}

	for id := range filled {
		if err := p.store.UpdateOrderStatus(id, models.OrderStatusFilled, ""); err != nil {
			log.Warn().Err(err).Str("order_id", id).Msg("Failed to mark order filled")
		}
	}
	return filled, nil
}
