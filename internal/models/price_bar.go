package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar represents a single OHLCV bar for a symbol
type PriceBar struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    int64           `json:"volume"`
}

// Validate checks the invariants the feed is trusted not to break.
// Open and close are not checked against the high/low range.
func (b PriceBar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("price bar has no symbol")
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume %d for %s", b.Volume, b.Symbol)
	}
	if b.High.LessThan(b.Low) {
		return fmt.Errorf("high %s below low %s for %s", b.High, b.Low, b.Symbol)
	}
	return nil
}
