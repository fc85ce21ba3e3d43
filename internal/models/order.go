package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is BUY or SELL
type OrderSide string

// Order side constants
const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderType is the execution style of an order
type OrderType string

// Order type constants
const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// OrderStatus tracks an order through its lifecycle
type OrderStatus string

// Order status constants
const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"

	// OrderStatusCancelRequested is a submitted order whose cancel has been
	// sent but not confirmed; it may still fill.
	OrderStatusCancelRequested OrderStatus = "CANCEL_REQUESTED"
)

// Terminal reports whether no further transition is possible
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled || s == OrderStatusRejected
}

// Order is a request that has been accepted for submission
type Order struct {
	OrderID         string           `json:"order_id"`
	BrokerOrderID   string           `json:"broker_order_id,omitempty"`
	Symbol          string           `json:"symbol"`
	Side            OrderSide        `json:"side"`
	OrderType       OrderType        `json:"order_type"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	StopPrice       *decimal.Decimal `json:"stop_price,omitempty"`
	ReferencePrice  decimal.Decimal  `json:"reference_price"`
	ReservedCapital decimal.Decimal  `json:"reserved_capital"`
	Intent          SignalType       `json:"intent"`
	Reason          string           `json:"reason,omitempty"`
	Status          OrderStatus      `json:"status"`
	StatusReason    string           `json:"status_reason,omitempty"`
	SubmittedAt     time.Time        `json:"submitted_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
