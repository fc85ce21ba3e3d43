package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// FillRepository stores executions reported by the broker pipeline
type FillRepository interface {
	CreateFill(f *models.Fill) error
	FillExistsByOrderID(orderID, source string) (bool, error)
}

// Consumer records TRADE_DETECTED events as fills. The dispatcher
// reconciles its pending orders against the stored fills.
type Consumer struct {
	reader messageReader
	repo   FillRepository
	now    func() time.Time
}

// NewConsumer creates a Kafka consumer for trade events
func NewConsumer(brokers []string, topic, groupID string, repo FillRepository) *Consumer {
	return &Consumer{
		reader: newReader(brokers, topic, groupID),
		repo:   repo,
		now:    time.Now,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	return consume(ctx, c.reader, c.processMessage)
}

func (c *Consumer) processMessage(msg kafka.Message) error {
	var event models.TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal trade event: %w", err)
	}

	if event.EventType != models.EventTradeDetected {
		log.Debug().Str("event_type", event.EventType).Msg("Ignoring event type")
		return nil
	}

	exists, err := c.repo.FillExistsByOrderID(event.Data.OrderID, event.Source)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate fill: %w", err)
	}
	if exists {
		log.Info().Str("order_id", event.Data.OrderID).Str("source", event.Source).Msg("Fill already recorded, skipping")
		return nil
	}

	fill, err := c.convertEventToFill(event)
	if err != nil {
		return fmt.Errorf("failed to convert event to fill: %w", err)
	}

	if err := c.repo.CreateFill(fill); err != nil {
		return fmt.Errorf("failed to save fill: %w", err)
	}

	log.Info().Str("side", string(fill.Side)).Str("quantity", fill.Quantity.String()).
		Str("symbol", fill.Symbol).Str("price", fill.Price.String()).Str("order_id", fill.OrderID).
		Msg("Saved fill")
	return nil
}

func (c *Consumer) convertEventToFill(event models.TradeEvent) (*models.Fill, error) {
	data := event.Data
	if data.OrderID == "" {
		return nil, fmt.Errorf("trade event has no order id")
	}

	quantity, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %s: %w", data.Quantity, err)
	}

	price, err := decimal.NewFromString(data.AveragePrice)
	if err != nil {
		return nil, fmt.Errorf("invalid price %s: %w", data.AveragePrice, err)
	}

	totalCost, err := decimal.NewFromString(data.TotalNotional)
	if err != nil {
		totalCost = quantity.Mul(price)
	}

	fees := decimal.Zero
	if data.Fees != "" {
		fees, _ = decimal.NewFromString(data.Fees)
	}

	side := models.OrderSide(strings.ToUpper(data.Side))
	if side != models.SideBuy && side != models.SideSell {
		return nil, fmt.Errorf("invalid trade side: %s", data.Side)
	}

	executedAt := c.clock()
	if data.ExecutedAt != nil {
		if t, ok := parseEventTime(*data.ExecutedAt); ok {
			executedAt = t
		}
	}

	return &models.Fill{
		OrderID:    data.OrderID,
		Source:     event.Source,
		Symbol:     strings.ToUpper(data.Symbol),
		Side:       side,
		Quantity:   quantity,
		Price:      price,
		TotalCost:  totalCost,
		Fees:       fees,
		ExecutedAt: executedAt,
	}, nil
}

func (c *Consumer) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
