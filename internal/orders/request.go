package orders

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// ErrInvalidOrderRequest is wrapped by every validation failure
var ErrInvalidOrderRequest = errors.New("invalid order request")

// OrderRequest is what the sizing step hands to CreateOrder
type OrderRequest struct {
	Symbol     string
	Side       models.OrderSide
	Quantity   decimal.Decimal
	OrderType  models.OrderType
	LimitPrice *decimal.Decimal
	StopPrice  *decimal.Decimal

	// ReferencePrice is the market price the request was sized at
	ReferencePrice decimal.Decimal
	Intent         models.SignalType
	Reason         string
}

// Validate checks the request before an order is created from it
func (r *OrderRequest) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrderRequest)
	}
	if r.Side != models.SideBuy && r.Side != models.SideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrderRequest, r.Side)
	}
	if !r.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidOrderRequest, r.Quantity)
	}

	switch r.OrderType {
	case models.OrderTypeMarket:
	case models.OrderTypeLimit:
		if r.LimitPrice == nil {
			return fmt.Errorf("%w: limit orders require a limit price", ErrInvalidOrderRequest)
		}
	case models.OrderTypeStop:
		if r.StopPrice == nil {
			return fmt.Errorf("%w: stop orders require a stop price", ErrInvalidOrderRequest)
		}
	case models.OrderTypeStopLimit:
		if r.StopPrice == nil {
			return fmt.Errorf("%w: stop orders require a stop price", ErrInvalidOrderRequest)
		}
		if r.LimitPrice == nil {
			return fmt.Errorf("%w: stop limit orders require a limit price", ErrInvalidOrderRequest)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrderRequest, r.OrderType)
	}

	if r.LimitPrice != nil && !r.LimitPrice.IsPositive() {
		return fmt.Errorf("%w: limit price must be positive", ErrInvalidOrderRequest)
	}
	if r.StopPrice != nil && !r.StopPrice.IsPositive() {
		return fmt.Errorf("%w: stop price must be positive", ErrInvalidOrderRequest)
	}
	return nil
}
