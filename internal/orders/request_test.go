package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

func TestOrderRequest_Validate(t *testing.T) {
	t.Run("Accepts a market order", func(t *testing.T) {
		req := OrderRequest{Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("1.5"), OrderType: models.OrderTypeMarket}
		assert.NoError(t, req.Validate())
	})

	t.Run("Accepts a stop limit order with both prices", func(t *testing.T) {
		req := OrderRequest{
			Symbol: "AAPL", Side: models.SideSell, Quantity: dec("1"), OrderType: models.OrderTypeStopLimit,
			LimitPrice: decPtr("99"), StopPrice: decPtr("100"),
		}
		assert.NoError(t, req.Validate())
	})

	t.Run("Rejects a non-positive limit price", func(t *testing.T) {
		req := OrderRequest{
			Symbol: "AAPL", Side: models.SideBuy, Quantity: dec("1"), OrderType: models.OrderTypeLimit,
			LimitPrice: decPtr("0"),
		}
		assert.ErrorIs(t, req.Validate(), ErrInvalidOrderRequest)
	})

	t.Run("Rejects an unknown side", func(t *testing.T) {
		req := OrderRequest{Symbol: "AAPL", Side: "HOLD", Quantity: dec("1"), OrderType: models.OrderTypeMarket}
		assert.ErrorIs(t, req.Validate(), ErrInvalidOrderRequest)
	})
}
