// Package feed assembles the price histories and latest prices the
// dispatcher hands to the strategy.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// BarStore reads stored bars
type BarStore interface {
	GetRecentPriceBars(symbol string, limit int) ([]models.PriceBar, error)
}

// QuoteSource reads cached quotes
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (decimal.Decimal, time.Time, bool, error)
}

// Feed reads histories from the bar store and latest prices from the
// quote cache
type Feed struct {
	bars       BarStore
	quotes     QuoteSource
	historyLen int
}

// New creates a Feed returning at most historyLen bars per symbol.
// quotes may be nil, in which case latest prices come from bar closes.
func New(bars BarStore, quotes QuoteSource, historyLen int) *Feed {
	return &Feed{bars: bars, quotes: quotes, historyLen: historyLen}
}

// Histories returns the most recent bars for each symbol, oldest first.
// Symbols whose bars cannot be read are logged and left out; symbols with
// no bars are left out silently.
func (f *Feed) Histories(ctx context.Context, symbols []string) (map[string][]models.PriceBar, error) {
	histories := make(map[string][]models.PriceBar, len(symbols))
	var failures int

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bars, err := f.bars.GetRecentPriceBars(symbol, f.historyLen)
		if err != nil {
			failures++
			log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to load price history")
			continue
		}
		if len(bars) == 0 {
			continue
		}
		histories[symbol] = bars
	}

	if failures > 0 && failures == len(symbols) {
		return nil, fmt.Errorf("failed to load price history for all %d symbols", failures)
	}
	return histories, nil
}

// LatestPrice returns the cached quote for symbol, falling back to the
// last close of history. ok is false when neither is available.
func (f *Feed) LatestPrice(ctx context.Context, symbol string, history []models.PriceBar) (decimal.Decimal, bool) {
	if f.quotes != nil {
		price, _, ok, err := f.quotes.GetQuote(ctx, symbol)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("symbol", symbol).Msg("Quote lookup failed, using last close")
		case ok && price.IsPositive():
			return price, true
		}
	}

	if len(history) == 0 {
		return decimal.Zero, false
	}
	last := history[len(history)-1].Close
	if !last.IsPositive() {
		return decimal.Zero, false
	}
	return last, true
}
