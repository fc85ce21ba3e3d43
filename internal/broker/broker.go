// Package broker defines what the dispatcher needs from a brokerage and
// implements it on top of the Kafka order pipeline and the Postgres
// snapshots the consumers maintain.
package broker

import (
	"context"
	"errors"

	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// ErrNoSnapshot is returned when the broker has not reported account
// state yet
var ErrNoSnapshot = errors.New("no broker snapshot yet")

// Broker places and cancels orders and reports holdings. CancelOrder only
// requests the cancel; the order can still fill until ConfirmCancel.
type Broker interface {
	PlaceOrder(ctx context.Context, order *models.Order) (string, error)
	CancelOrder(ctx context.Context, orderID string) error
	ConfirmCancel(ctx context.Context, orderID string) error
	GetPositions(ctx context.Context) (map[string]*models.Position, error)
	GetAccountInfo(ctx context.Context) (*models.AccountInfo, error)
	FilledOrders(ctx context.Context, orderIDs []string) (map[string]bool, error)
}
