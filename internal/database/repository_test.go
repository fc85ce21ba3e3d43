package database

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPriceBarsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	bar := func(day int, close string) models.PriceBar {
		c := d(close)
		return models.PriceBar{
			Symbol: "AAPL", Timestamp: base.AddDate(0, 0, day),
			Open: c, High: c.Add(d("1")), Low: c.Sub(d("1")), Close: c, Volume: 1000,
		}
	}

	t.Run("GetRecentPriceBars returns newest bars oldest first", func(t *testing.T) {
		testDB.TruncateAll(t)

		var bars []models.PriceBar
		for i := 0; i < 10; i++ {
			bars = append(bars, bar(i, decimal.NewFromInt(int64(100+i)).String()))
		}
		require.NoError(t, testDB.UpsertPriceBarsBatch(bars))

		recent, err := testDB.GetRecentPriceBars("AAPL", 3)
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.True(t, recent[0].Close.Equal(d("107")))
		assert.True(t, recent[2].Close.Equal(d("109")))
		assert.True(t, recent[0].Timestamp.Before(recent[2].Timestamp))
	})

	t.Run("UpsertPriceBar replaces a bar with the same time", func(t *testing.T) {
		testDB.TruncateAll(t)

		first := bar(0, "100")
		require.NoError(t, testDB.UpsertPriceBar(&first))
		second := bar(0, "101.5")
		require.NoError(t, testDB.UpsertPriceBar(&second))

		latest, err := testDB.GetLatestPriceBar("AAPL")
		require.NoError(t, err)
		assert.True(t, latest.Close.Equal(d("101.5")))

		recent, err := testDB.GetRecentPriceBars("AAPL", 10)
		require.NoError(t, err)
		assert.Len(t, recent, 1)
	})

	t.Run("GetLatestPriceBar reports missing symbols", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetLatestPriceBar("NOPE")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeletePriceBarsOlderThan prunes history", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertPriceBarsBatch([]models.PriceBar{bar(0, "1"), bar(1, "2"), bar(2, "3")}))

		deleted, err := testDB.DeletePriceBarsOlderThan(base.AddDate(0, 0, 2))
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)
	})
}

func TestPositionsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("ReplaceAllPositions swaps the snapshot", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.ReplaceAllPositions([]*models.Position{
			{Symbol: "AAPL", Quantity: d("10"), AvgEntryPrice: d("150"), CurrentPrice: d("160"), DaysHeld: 3},
			{Symbol: "MSFT", Quantity: d("2"), AvgEntryPrice: d("300")},
		}))
		require.NoError(t, testDB.ReplaceAllPositions([]*models.Position{
			{Symbol: "AAPL", Quantity: d("12.5"), AvgEntryPrice: d("148"), UnrealizedPnlPct: d("-2.5")},
		}))

		positions, err := testDB.GetAllPositions()
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.True(t, positions["AAPL"].Quantity.Equal(d("12.5")))
		assert.True(t, positions["AAPL"].UnrealizedPnlPct.Equal(d("-2.5")))
	})

	t.Run("GetPositionBySymbol reports missing holdings", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetPositionBySymbol("AAPL")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAccountRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	testDB.TruncateAll(t)

	_, err := testDB.GetAccount()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, testDB.UpsertAccount(&models.AccountInfo{Cash: d("1000"), BuyingPower: d("1000"), PortfolioValue: d("5000")}))
	require.NoError(t, testDB.UpsertAccount(&models.AccountInfo{Cash: d("900.25"), BuyingPower: d("900.25"), PortfolioValue: d("5100")}))

	account, err := testDB.GetAccount()
	require.NoError(t, err)
	assert.True(t, account.Cash.Equal(d("900.25")))
	assert.True(t, account.PortfolioValue.Equal(d("5100")))
}

func TestOrdersAndFillsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	now := time.Now().UTC().Truncate(time.Second)
	limit := d("99.5")
	newOrder := func(id, symbol string, status models.OrderStatus) *models.Order {
		return &models.Order{
			OrderID: id, Symbol: symbol, Side: models.SideBuy, OrderType: models.OrderTypeLimit,
			Quantity: d("2"), Price: &limit, ReferencePrice: d("100"), ReservedCapital: d("199"),
			Intent: models.SignalBuy, Reason: "dip", Status: status, SubmittedAt: now, UpdatedAt: now,
		}
	}

	t.Run("CreateOrder and GetOrderByID round trip optional fields", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreateOrder(newOrder("ORD_1", "AAPL", models.OrderStatusSubmitted)))

		got, err := testDB.GetOrderByID("ORD_1")
		require.NoError(t, err)
		require.NotNil(t, got.Price)
		assert.True(t, got.Price.Equal(limit))
		assert.Nil(t, got.StopPrice)
		assert.Equal(t, models.SignalBuy, got.Intent)
		assert.Equal(t, "", got.BrokerOrderID)
	})

	t.Run("GetOrdersByStatus filters by state", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreateOrder(newOrder("ORD_1", "AAPL", models.OrderStatusSubmitted)))
		require.NoError(t, testDB.CreateOrder(newOrder("ORD_2", "MSFT", models.OrderStatusSubmitted)))
		require.NoError(t, testDB.UpdateOrderStatus("ORD_2", models.OrderStatusCancelled, "stale"))

		open, err := testDB.GetOrdersByStatus(models.OrderStatusCreated, models.OrderStatusSubmitted)
		require.NoError(t, err)
		require.Len(t, open, 1)
		assert.Equal(t, "ORD_1", open[0].OrderID)

		cancelled, err := testDB.GetOrderByID("ORD_2")
		require.NoError(t, err)
		assert.Equal(t, "stale", cancelled.StatusReason)
	})

	t.Run("Cancel-requested orders stay open", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.CreateOrder(newOrder("ORD_1", "AAPL", models.OrderStatusSubmitted)))
		require.NoError(t, testDB.UpdateOrderStatus("ORD_1", models.OrderStatusCancelRequested, "cancel requested"))

		got, err := testDB.GetOrderByID("ORD_1")
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusCancelRequested, got.Status)
		assert.False(t, got.Status.Terminal())
	})

	t.Run("Fills are idempotent per order and source", func(t *testing.T) {
		testDB.TruncateAll(t)

		fill := &models.Fill{
			OrderID: "ORD_1", Source: "broker", Symbol: "AAPL", Side: models.SideBuy,
			Quantity: d("2"), Price: d("99.5"), TotalCost: d("199"), Fees: d("0"), ExecutedAt: now,
		}
		require.NoError(t, testDB.CreateFill(fill))
		assert.NotZero(t, fill.ID)

		exists, err := testDB.FillExistsByOrderID("ORD_1", "broker")
		require.NoError(t, err)
		assert.True(t, exists)

		dup := *fill
		assert.Error(t, testDB.CreateFill(&dup))

		filled, err := testDB.FilledOrderIDs([]string{"ORD_1", "ORD_2"})
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"ORD_1": true}, filled)

		fills, err := testDB.GetFillsBySymbol("AAPL", 10)
		require.NoError(t, err)
		assert.Len(t, fills, 1)
	})
}

func TestTradeLogRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	testDB.TruncateAll(t)

	start := time.Date(2026, 1, 5, 15, 0, 0, 0, time.UTC)
	entries := []*models.TradeLogEntry{
		{Timestamp: start, Action: models.SideBuy, Symbol: "AAPL", Quantity: d("2"), Price: d("100"), Reason: "dip", OrderID: "ORD_1"},
		{Timestamp: start.Add(time.Hour), Action: models.SideBuy, Symbol: "MSFT", Quantity: d("1"), Price: d("300")},
		{Timestamp: start.Add(2 * time.Hour), Action: models.SideSell, Symbol: "AAPL", Quantity: d("2"), Price: d("110"), Reason: "target"},
	}
	for _, e := range entries {
		require.NoError(t, testDB.CreateTradeLogEntry(e))
	}

	t.Run("GetTradeLog returns newest first", func(t *testing.T) {
		log, err := testDB.GetTradeLog(10)
		require.NoError(t, err)
		require.Len(t, log, 3)
		assert.Equal(t, models.SideSell, log[0].Action)
		assert.Equal(t, "ORD_1", log[2].OrderID)
	})

	t.Run("GetTradeLogBySymbol filters", func(t *testing.T) {
		log, err := testDB.GetTradeLogBySymbol("AAPL", 10)
		require.NoError(t, err)
		assert.Len(t, log, 2)
	})

	t.Run("GetTradeSummary aggregates counts and notional", func(t *testing.T) {
		summary, err := testDB.GetTradeSummary()
		require.NoError(t, err)
		assert.Equal(t, 2, summary.TotalBuys)
		assert.Equal(t, 1, summary.TotalSells)
		assert.True(t, summary.BuyNotional.Equal(d("500")), "got %s", summary.BuyNotional)
		assert.True(t, summary.SellNotional.Equal(d("220")))
		assert.Equal(t, 2, summary.Symbols)
		require.NotNil(t, summary.FirstTradeAt)
		require.NotNil(t, summary.LastTradeAt)
		assert.True(t, summary.LastTradeAt.After(*summary.FirstTradeAt))
	})
}

func TestWatchlistRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("UpsertWatchlistEntry keeps the original added time", func(t *testing.T) {
		testDB.TruncateAll(t)

		entry := &models.WatchlistEntry{Symbol: "PLTR", Enabled: true, Notes: "momentum"}
		require.NoError(t, testDB.UpsertWatchlistEntry(entry))
		added := entry.AddedAt

		again := &models.WatchlistEntry{Symbol: "PLTR", Enabled: true, Notes: "updated"}
		require.NoError(t, testDB.UpsertWatchlistEntry(again))

		got, err := testDB.GetWatchlistEntry("PLTR")
		require.NoError(t, err)
		assert.Equal(t, "updated", got.Notes)
		assert.WithinDuration(t, added, got.AddedAt, time.Millisecond)
	})

	t.Run("GetWatchedSymbols skips disabled entries", func(t *testing.T) {
		testDB.TruncateAll(t)

		for _, s := range []string{"PLTR", "SOFI", "RIVN"} {
			require.NoError(t, testDB.UpsertWatchlistEntry(&models.WatchlistEntry{Symbol: s, Enabled: true}))
		}
		require.NoError(t, testDB.SetWatchlistEnabled("SOFI", false))

		symbols, err := testDB.GetWatchedSymbols()
		require.NoError(t, err)
		assert.Equal(t, []string{"PLTR", "RIVN"}, symbols)

		all, err := testDB.GetWatchlist()
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("DeleteWatchlistEntry reports missing symbols", func(t *testing.T) {
		testDB.TruncateAll(t)

		assert.ErrorIs(t, testDB.DeleteWatchlistEntry("NOPE"), ErrNotFound)
		assert.ErrorIs(t, testDB.SetWatchlistEnabled("NOPE", true), ErrNotFound)
	})
}
