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

// BarRepository stores price bars
type BarRepository interface {
	UpsertPriceBar(b *models.PriceBar) error
}

// QuoteCache holds the most recent price per symbol. SetQuote must ignore
// quotes older than the one held, since replayed bars arrive late.
type QuoteCache interface {
	SetQuote(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error
}

// BarsConsumer stores PRICE_BAR events and refreshes the latest quote
type BarsConsumer struct {
	reader messageReader
	repo   BarRepository
	quotes QuoteCache
}

// NewBarsConsumer creates a consumer for the market data topic. quotes may be nil.
func NewBarsConsumer(brokers []string, topic, groupID string, repo BarRepository, quotes QuoteCache) *BarsConsumer {
	return &BarsConsumer{
		reader: newReader(brokers, topic, groupID),
		repo:   repo,
		quotes: quotes,
	}
}

// Start begins consuming messages from Kafka
func (c *BarsConsumer) Start(ctx context.Context) error {
	return consume(ctx, c.reader, func(msg kafka.Message) error {
		return c.processMessage(ctx, msg)
	})
}

func (c *BarsConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.PriceBarEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal price bar event: %w", err)
	}

	if event.EventType != models.EventPriceBar {
		log.Debug().Str("event_type", event.EventType).Msg("Ignoring event type")
		return nil
	}

	bar, err := convertEventToBar(event.Data)
	if err != nil {
		return fmt.Errorf("failed to convert event to price bar: %w", err)
	}
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("rejected price bar: %w", err)
	}

	if err := c.repo.UpsertPriceBar(bar); err != nil {
		return fmt.Errorf("failed to save price bar: %w", err)
	}

	if c.quotes != nil {
		if err := c.quotes.SetQuote(ctx, bar.Symbol, bar.Close, bar.Timestamp); err != nil {
			log.Warn().Err(err).Str("symbol", bar.Symbol).Msg("Failed to cache quote")
		}
	}
	return nil
}

func convertEventToBar(data models.PriceBarData) (*models.PriceBar, error) {
	ts, ok := parseEventTime(data.Timestamp)
	if !ok {
		return nil, fmt.Errorf("invalid bar timestamp %q", data.Timestamp)
	}

	values := make([]decimal.Decimal, 4)
	for i, s := range []string{data.Open, data.High, data.Low, data.Close} {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", s, err)
		}
		values[i] = v
	}

	return &models.PriceBar{
		Symbol:    strings.ToUpper(data.Symbol),
		Timestamp: ts,
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    data.Volume,
	}, nil
}

// Close closes the Kafka consumer
func (c *BarsConsumer) Close() error {
	return c.reader.Close()
}
