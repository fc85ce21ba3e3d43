package models

import "time"

// Consumed event types
const (
	EventPriceBar          = "PRICE_BAR"
	EventPositionsSnapshot = "POSITIONS_SNAPSHOT"
	EventTradeDetected     = "TRADE_DETECTED"
)

// Produced event types
const (
	EventOrderSubmitted       = "ORDER_SUBMITTED"
	EventOrderCancelRequested = "ORDER_CANCEL_REQUESTED"
	EventSymbolAdded          = "SYMBOL_ADDED"
	EventSymbolRemoved        = "SYMBOL_REMOVED"
)

// PriceBarEvent carries one bar from the market data pipeline
type PriceBarEvent struct {
	EventType string       `json:"event_type"`
	Source    string       `json:"source"`
	Timestamp string       `json:"timestamp"`
	Data      PriceBarData `json:"data"`
}

// PriceBarData holds bar values as strings to keep full precision
type PriceBarData struct {
	Symbol    string `json:"symbol"`
	Timestamp string `json:"timestamp"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    int64  `json:"volume"`
}

// PositionsEvent is a full snapshot of the brokerage account
type PositionsEvent struct {
	EventType string             `json:"event_type"`
	Source    string             `json:"source"`
	Timestamp string             `json:"timestamp"`
	Data      PositionsEventData `json:"data"`
}

// PositionsEventData is the payload of a positions snapshot
type PositionsEventData struct {
	Cash           string         `json:"cash"`
	BuyingPower    string         `json:"buying_power"`
	PortfolioValue string         `json:"portfolio_value"`
	Positions      []PositionData `json:"positions"`
}

// PositionData describes one holding inside a snapshot
type PositionData struct {
	Symbol          string  `json:"symbol"`
	Quantity        string  `json:"quantity"`
	AverageBuyPrice string  `json:"average_buy_price"`
	CurrentPrice    string  `json:"current_price,omitempty"`
	Equity          string  `json:"equity,omitempty"`
	PercentChange   string  `json:"percent_change"`
	OpenedAt        *string `json:"opened_at,omitempty"`
}

// TradeEvent reports an execution detected on the brokerage side
type TradeEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      TradeEventData `json:"data"`
}

// TradeEventData is the payload of a trade event
type TradeEventData struct {
	OrderID       string  `json:"order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      string  `json:"quantity"`
	AveragePrice  string  `json:"average_price"`
	TotalNotional string  `json:"total_notional"`
	Fees          string  `json:"fees"`
	ExecutedAt    *string `json:"executed_at,omitempty"`
}

// OrderEvent is published for every order the bot sends to the broker
type OrderEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Source    string    `json:"source"`
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Order     *Order    `json:"order,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WatchlistEvent is published when the trading universe changes
type WatchlistEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
}
