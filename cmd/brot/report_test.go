package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

func TestWriteReport(t *testing.T) {
	t.Run("Full report", func(t *testing.T) {
		first := time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC)
		last := time.Date(2026, 1, 14, 15, 0, 0, 0, time.UTC)
		summary := &models.TradeSummary{
			TotalBuys:    3,
			TotalSells:   1,
			BuyNotional:  decimal.RequireFromString("1500.5"),
			SellNotional: decimal.RequireFromString("560"),
			Symbols:      2,
			FirstTradeAt: &first,
			LastTradeAt:  &last,
		}
		positions := map[string]*models.Position{
			"MSFT": {Symbol: "MSFT", Quantity: decimal.NewFromInt(2), DaysHeld: 3},
			"AAPL": {Symbol: "AAPL", Quantity: decimal.RequireFromString("5.56"), AvgEntryPrice: decimal.NewFromInt(90),
				CurrentPrice: decimal.NewFromInt(99), UnrealizedPnl: decimal.RequireFromString("50.04"),
				UnrealizedPnlPct: decimal.NewFromInt(10), DaysHeld: 9},
		}
		account := &models.AccountInfo{Cash: decimal.NewFromInt(9000)}

		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, summary, positions, account))
		out := buf.String()

		assert.Contains(t, out, "Total buys:")
		assert.Contains(t, out, "1500.50")
		assert.Contains(t, out, "2026-01-05 to 2026-01-14")
		assert.Contains(t, out, "10.00%")
		assert.Contains(t, out, "9000.00")
		assert.Less(t, bytes.Index(buf.Bytes(), []byte("AAPL")), bytes.Index(buf.Bytes(), []byte("MSFT")))
	})

	t.Run("Empty state", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeReport(&buf, &models.TradeSummary{}, nil, nil))

		assert.Contains(t, buf.String(), "No open positions")
		assert.Contains(t, buf.String(), "No account snapshot received yet")
		assert.NotContains(t, buf.String(), "Period:")
	})
}
