package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents a current holding as reported by the broker
type Position struct {
	ID               int             `json:"id"`
	Symbol           string          `json:"symbol"`
	Quantity         decimal.Decimal `json:"quantity"`
	AvgEntryPrice    decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice     decimal.Decimal `json:"current_price,omitempty"`
	UnrealizedPnl    decimal.Decimal `json:"unrealized_pnl,omitempty"`
	UnrealizedPnlPct decimal.Decimal `json:"unrealized_pnl_pct,omitempty"`
	DaysHeld         int             `json:"days_held"`
	OpenedAt         time.Time       `json:"opened_at"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// MarketValue returns quantity times current price
func (p *Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice)
}

// RefreshDaysHeld recomputes DaysHeld as whole days between OpenedAt and
// now. Positions without an open time keep their stored value.
func (p *Position) RefreshDaysHeld(now time.Time) {
	if p.OpenedAt.IsZero() {
		return
	}
	days := int(now.Sub(p.OpenedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	p.DaysHeld = days
}

// AccountInfo is the broker's view of the account
type AccountInfo struct {
	Cash           decimal.Decimal `json:"cash"`
	BuyingPower    decimal.Decimal `json:"buying_power"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
