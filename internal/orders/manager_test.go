package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func newTestManager(capital string) (*Manager, *testClock) {
	clock := &testClock{t: time.Date(2026, 1, 14, 14, 30, 0, 0, time.UTC)}
	return NewManager(dec(capital), dec("5"), WithClock(clock.Now)), clock
}

func buySignal(symbol string) models.Signal {
	return models.NewSignal(time.Now(), symbol, "MeanReversion", 0.8, "Price dropped 10.0% in 7 days",
		models.EntryDetails{EntryPrice: dec("90")})
}

func TestManager_ProcessSignal(t *testing.T) {
	t.Run("sizes a buy at position size percent of available capital", func(t *testing.T) {
		m, _ := newTestManager("10000")

		req := m.ProcessSignal(buySignal("AAPL"), dec("150"), nil)

		require.NotNil(t, req)
		assert.Equal(t, models.SideBuy, req.Side)
		assert.Equal(t, models.OrderTypeMarket, req.OrderType)
		// 10000 * 5% = 500; 500 / 150 = 3.333.. -> 3.33
		assert.True(t, req.Quantity.Equal(dec("3.33")), "got %s", req.Quantity)
		assert.True(t, req.ReferencePrice.Equal(dec("150")))
		assert.Equal(t, models.SignalBuy, req.Intent)
	})

	t.Run("add position is sized like an entry", func(t *testing.T) {
		m, _ := newTestManager("10000")
		sig := models.NewSignal(time.Now(), "AAPL", "MeanReversion", 0.7, "Adding", models.AdditionDetails{Addition: 1})

		req := m.ProcessSignal(sig, dec("100"), &models.Position{Symbol: "AAPL", Quantity: dec("7")})

		require.NotNil(t, req)
		assert.Equal(t, models.SideBuy, req.Side)
		assert.True(t, req.Quantity.Equal(dec("5")))
		assert.Equal(t, models.SignalAddPosition, req.Intent)
	})

	t.Run("sell uses the held quantity", func(t *testing.T) {
		m, _ := newTestManager("10000")
		sig := models.NewSignal(time.Now(), "AAPL", "MeanReversion", 1.0, "held", models.ExitDetails{Cause: models.ExitMaxHolding})

		req := m.ProcessSignal(sig, dec("100"), &models.Position{Symbol: "AAPL", Quantity: dec("4.89941")})

		require.NotNil(t, req)
		assert.Equal(t, models.SideSell, req.Side)
		assert.True(t, req.Quantity.Equal(dec("4.89941")))
	})

	t.Run("sell without a holding is rejected", func(t *testing.T) {
		m, _ := newTestManager("10000")
		sig := models.NewSignal(time.Now(), "AAPL", "MeanReversion", 0.8, "up", models.ExitDetails{Cause: models.ExitProfitTarget})

		assert.Nil(t, m.ProcessSignal(sig, dec("100"), nil))
	})

	t.Run("sell is not blocked by zero capital", func(t *testing.T) {
		m, _ := newTestManager("0")
		sig := models.NewSignal(time.Now(), "AAPL", "MeanReversion", 0.8, "up", models.ExitDetails{Cause: models.ExitProfitTarget})

		req := m.ProcessSignal(sig, dec("100"), &models.Position{Symbol: "AAPL", Quantity: dec("2")})
		require.NotNil(t, req)
	})

	t.Run("rejects low confidence", func(t *testing.T) {
		m, _ := newTestManager("10000")
		sig := buySignal("AAPL")
		sig.Confidence = 0.49

		assert.Nil(t, m.ProcessSignal(sig, dec("100"), nil))
	})

	t.Run("accepts confidence of exactly one half", func(t *testing.T) {
		m, _ := newTestManager("10000")
		sig := buySignal("AAPL")
		sig.Confidence = 0.5

		assert.NotNil(t, m.ProcessSignal(sig, dec("100"), nil))
	})

	t.Run("rejects when size rounds to zero", func(t *testing.T) {
		m, _ := newTestManager("1")

		// 1 * 5% = 0.05; 0.05 / 100 = 0.0005 -> 0.00
		assert.Nil(t, m.ProcessSignal(buySignal("AAPL"), dec("100"), nil))
	})

	t.Run("rejects a non-positive price", func(t *testing.T) {
		m, _ := newTestManager("10000")

		assert.Nil(t, m.ProcessSignal(buySignal("AAPL"), decimal.Zero, nil))
	})
}

func TestManager_SizingIdempotence(t *testing.T) {
	m, _ := newTestManager("12345.67")
	price := dec("37.21")

	first := m.ProcessSignal(buySignal("AAPL"), price, nil)
	require.NotNil(t, first)
	for i := 0; i < 5; i++ {
		again := m.ProcessSignal(buySignal("AAPL"), price, nil)
		require.NotNil(t, again)
		assert.True(t, first.Quantity.Equal(again.Quantity))
	}

	bound := m.AvailableCapital().Div(price).Round(2)
	assert.True(t, first.Quantity.LessThanOrEqual(bound))

	order, err := m.CreateOrder(first)
	require.NoError(t, err)
	assert.True(t, order.Quantity.Equal(first.Quantity))
	assert.True(t, order.Quantity.LessThanOrEqual(bound))
}

func TestManager_CreateOrder(t *testing.T) {
	t.Run("tracks the order and reserves market buy capital at the sizing price", func(t *testing.T) {
		m, _ := newTestManager("10000")
		req := m.ProcessSignal(buySignal("AAPL"), dec("100"), nil)
		require.NotNil(t, req)

		order, err := m.CreateOrder(req)
		require.NoError(t, err)

		assert.Equal(t, "ORD_20260114_143000.000000000_AAPL_1", order.OrderID)
		assert.Equal(t, models.OrderStatusCreated, order.Status)
		assert.True(t, order.ReservedCapital.Equal(dec("500")))
		assert.True(t, m.AvailableCapital().Equal(dec("9500")))
		assert.True(t, m.HasPending("AAPL"))
		assert.Equal(t, []string{order.OrderID}, m.PendingIDs())
	})

	t.Run("limit buys reserve at the limit price", func(t *testing.T) {
		m, _ := newTestManager("10000")

		order, err := m.CreateOrder(&OrderRequest{
			Symbol: "MSFT", Side: models.SideBuy, Quantity: dec("2"),
			OrderType: models.OrderTypeLimit, LimitPrice: decPtr("300"), ReferencePrice: dec("310"),
		})
		require.NoError(t, err)

		assert.True(t, order.ReservedCapital.Equal(dec("600")))
		assert.True(t, m.AvailableCapital().Equal(dec("9400")))
	})

	t.Run("sells reserve nothing", func(t *testing.T) {
		m, _ := newTestManager("10000")

		_, err := m.CreateOrder(&OrderRequest{
			Symbol: "MSFT", Side: models.SideSell, Quantity: dec("2"),
			OrderType: models.OrderTypeMarket, ReferencePrice: dec("310"),
		})
		require.NoError(t, err)
		assert.True(t, m.AvailableCapital().Equal(dec("10000")))
	})

	t.Run("ids are unique within the same instant", func(t *testing.T) {
		m, _ := newTestManager("10000")
		seen := map[string]bool{}
		for i := 0; i < 10; i++ {
			order, err := m.CreateOrder(&OrderRequest{
				Symbol: "AAPL", Side: models.SideSell, Quantity: dec("1"), OrderType: models.OrderTypeMarket,
			})
			require.NoError(t, err)
			assert.False(t, seen[order.OrderID])
			seen[order.OrderID] = true
		}
	})

	t.Run("validation failures are distinguishable and leave no trace", func(t *testing.T) {
		cases := []struct {
			name string
			req  OrderRequest
		}{
			{"zero quantity", OrderRequest{Symbol: "AAPL", Side: models.SideBuy, Quantity: decimal.Zero, OrderType: models.OrderTypeMarket}},
			{"negative quantity", OrderRequest{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("-1"), OrderType: models.OrderTypeMarket}},
			{"limit without price", OrderRequest{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("1"), OrderType: models.OrderTypeLimit}},
			{"stop without price", OrderRequest{Symbol: "AAPL", Side: models.SideSell, Quantity: dec("1"), OrderType: models.OrderTypeStop}},
			{"stop limit without stop", OrderRequest{Symbol: "AAPL", Side: models.SideSell, Quantity: dec("1"), OrderType: models.OrderTypeStopLimit, LimitPrice: decPtr("10")}},
			{"missing symbol", OrderRequest{Side: models.SideBuy, Quantity: dec("1"), OrderType: models.OrderTypeMarket}},
			{"unknown type", OrderRequest{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("1"), OrderType: "ICEBERG"}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				m, _ := newTestManager("10000")
				req := tc.req

				order, err := m.CreateOrder(&req)

				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidOrderRequest))
				assert.Nil(t, order)
				assert.Empty(t, m.PendingIDs())
				assert.True(t, m.AvailableCapital().Equal(dec("10000")))
			})
		}
	})
}

func TestManager_Lifecycle(t *testing.T) {
	t.Run("fill drops the reservation and moves to history", func(t *testing.T) {
		m, _ := newTestManager("10000")
		order, err := m.CreateOrder(m.ProcessSignal(buySignal("AAPL"), dec("100"), nil))
		require.NoError(t, err)
		require.NoError(t, m.MarkSubmitted(order.OrderID, "broker-1"))

		filled, err := m.MarkFilled(order.OrderID)
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusFilled, filled.Status)
		assert.Equal(t, "broker-1", filled.BrokerOrderID)
		assert.False(t, m.HasPending("AAPL"))
		assert.True(t, m.AvailableCapital().Equal(dec("9500")))
		require.Len(t, m.History(), 1)
	})

	t.Run("cancel and reject release the reservation", func(t *testing.T) {
		m, _ := newTestManager("10000")
		a, err := m.CreateOrder(m.ProcessSignal(buySignal("AAPL"), dec("100"), nil))
		require.NoError(t, err)
		b, err := m.CreateOrder(m.ProcessSignal(buySignal("MSFT"), dec("100"), nil))
		require.NoError(t, err)

		_, err = m.MarkCancelled(a.OrderID, "stale")
		require.NoError(t, err)
		_, err = m.MarkRejected(b.OrderID, "broker down")
		require.NoError(t, err)

		assert.True(t, m.AvailableCapital().Equal(dec("10000")), "got %s", m.AvailableCapital())
		history := m.History()
		require.Len(t, history, 2)
		assert.Equal(t, models.OrderStatusCancelled, history[0].Status)
		assert.Equal(t, "broker down", history[1].StatusReason)
	})

	t.Run("finishing twice is an error", func(t *testing.T) {
		m, _ := newTestManager("10000")
		order, err := m.CreateOrder(m.ProcessSignal(buySignal("AAPL"), dec("100"), nil))
		require.NoError(t, err)

		_, err = m.MarkFilled(order.OrderID)
		require.NoError(t, err)
		_, err = m.MarkFilled(order.OrderID)
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.ErrorIs(t, m.MarkSubmitted(order.OrderID, "x"), ErrOrderNotFound)
	})

	t.Run("sync keeps outstanding reservations", func(t *testing.T) {
		m, _ := newTestManager("10000")
		_, err := m.CreateOrder(m.ProcessSignal(buySignal("AAPL"), dec("100"), nil))
		require.NoError(t, err)

		m.SyncCapital(dec("8000"))

		assert.True(t, m.Capital().Equal(dec("8000")))
		assert.True(t, m.AvailableCapital().Equal(dec("7500")))
	})

	t.Run("stale pending orders are reported", func(t *testing.T) {
		m, clock := newTestManager("10000")
		old, err := m.CreateOrder(m.ProcessSignal(buySignal("AAPL"), dec("100"), nil))
		require.NoError(t, err)

		clock.t = clock.t.Add(20 * time.Minute)
		_, err = m.CreateOrder(m.ProcessSignal(buySignal("MSFT"), dec("100"), nil))
		require.NoError(t, err)

		assert.Equal(t, []string{old.OrderID}, m.StalePending(15*time.Minute))
		assert.Nil(t, m.StalePending(0))
	})

	t.Run("cancel request keeps the order pending until confirmed", func(t *testing.T) {
		m, clock := newTestManager("10000")
		order, err := m.CreateOrder(m.ProcessSignal(buySignal("AAPL"), dec("100"), nil))
		require.NoError(t, err)
		require.NoError(t, m.MarkSubmitted(order.OrderID, "broker-1"))

		clock.t = clock.t.Add(20 * time.Minute)
		require.Equal(t, []string{order.OrderID}, m.StalePending(15*time.Minute))
		require.NoError(t, m.MarkCancelRequested(order.OrderID))

		pending, ok := m.Pending(order.OrderID)
		require.True(t, ok)
		assert.Equal(t, models.OrderStatusCancelRequested, pending.Status)
		assert.True(t, m.HasPending("AAPL"))
		assert.True(t, m.Reserved().Equal(dec("500")), "got %s", m.Reserved())
		assert.Nil(t, m.StalePending(15*time.Minute))
		assert.Nil(t, m.ExpiredCancels(5*time.Minute))

		clock.t = clock.t.Add(5 * time.Minute)
		assert.Equal(t, []string{order.OrderID}, m.ExpiredCancels(5*time.Minute))
	})

	t.Run("fill after a cancel request keeps the reservation spent", func(t *testing.T) {
		m, _ := newTestManager("10000")
		order, err := m.CreateOrder(m.ProcessSignal(buySignal("AAPL"), dec("100"), nil))
		require.NoError(t, err)
		require.NoError(t, m.MarkCancelRequested(order.OrderID))

		filled, err := m.MarkFilled(order.OrderID)
		require.NoError(t, err)

		assert.Equal(t, models.OrderStatusFilled, filled.Status)
		assert.True(t, m.AvailableCapital().Equal(dec("9500")), "got %s", m.AvailableCapital())
		assert.Nil(t, m.ExpiredCancels(0))
		assert.ErrorIs(t, m.MarkCancelRequested(order.OrderID), ErrOrderNotFound)
	})
}
