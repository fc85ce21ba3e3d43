package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is an execution reported by the broker pipeline
type Fill struct {
	ID         int             `json:"id"`
	OrderID    string          `json:"order_id"`
	Source     string          `json:"source"`
	Symbol     string          `json:"symbol"`
	Side       OrderSide       `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	Fees       decimal.Decimal `json:"fees"`
	ExecutedAt time.Time       `json:"executed_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TradeLogEntry is one append-only record of an order the bot placed
type TradeLogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Action    OrderSide       `json:"action"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Reason    string          `json:"reason"`
	OrderID   string          `json:"order_id"`
}

// TradeSummary aggregates the trade log
type TradeSummary struct {
	TotalBuys    int             `json:"total_buys"`
	TotalSells   int             `json:"total_sells"`
	BuyNotional  decimal.Decimal `json:"buy_notional"`
	SellNotional decimal.Decimal `json:"sell_notional"`
	Symbols      int             `json:"symbols"`
	FirstTradeAt *time.Time      `json:"first_trade_at,omitempty"`
	LastTradeAt  *time.Time      `json:"last_trade_at,omitempty"`
}
