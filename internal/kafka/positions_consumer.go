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

// PositionsRepository stores broker snapshots
type PositionsRepository interface {
	GetAllPositions() (map[string]*models.Position, error)
	ReplaceAllPositions(positions []*models.Position) error
	UpsertAccount(a *models.AccountInfo) error
}

// PositionsConsumer applies POSITIONS_SNAPSHOT events. Each snapshot
// replaces the stored holdings and account balances.
type PositionsConsumer struct {
	reader messageReader
	repo   PositionsRepository
	now    func() time.Time
}

// NewPositionsConsumer creates a consumer for broker position snapshots
func NewPositionsConsumer(brokers []string, topic, groupID string, repo PositionsRepository) *PositionsConsumer {
	return &PositionsConsumer{
		reader: newReader(brokers, topic, groupID),
		repo:   repo,
		now:    time.Now,
	}
}

// Start begins consuming messages from Kafka
func (c *PositionsConsumer) Start(ctx context.Context) error {
	return consume(ctx, c.reader, c.processMessage)
}

func (c *PositionsConsumer) processMessage(msg kafka.Message) error {
	var event models.PositionsEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal positions event: %w", err)
	}

	if event.EventType != models.EventPositionsSnapshot {
		log.Debug().Str("event_type", event.EventType).Msg("Ignoring event type")
		return nil
	}

	now := c.clock()
	previous, err := c.repo.GetAllPositions()
	if err != nil {
		return fmt.Errorf("failed to load stored positions: %w", err)
	}

	positions := make([]*models.Position, 0, len(event.Data.Positions))
	for _, pd := range event.Data.Positions {
		p, err := convertPositionData(pd, previous, now)
		if err != nil {
			return fmt.Errorf("failed to convert position %s: %w", pd.Symbol, err)
		}
		if !p.Quantity.IsPositive() {
			continue
		}
		positions = append(positions, p)
	}

	if err := c.repo.ReplaceAllPositions(positions); err != nil {
		return fmt.Errorf("failed to replace positions: %w", err)
	}

	account := &models.AccountInfo{
		Cash:           parseDecimalOrZero(event.Data.Cash),
		BuyingPower:    parseDecimalOrZero(event.Data.BuyingPower),
		PortfolioValue: parseDecimalOrZero(event.Data.PortfolioValue),
		UpdatedAt:      now,
	}
	if event.Data.Cash == "" {
		account.Cash = account.BuyingPower
	}
	if err := c.repo.UpsertAccount(account); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	log.Info().Int("positions", len(positions)).Str("cash", account.Cash.StringFixed(2)).Msg("Applied positions snapshot")
	return nil
}

func (c *PositionsConsumer) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// convertPositionData maps a snapshot entry to a Position. The open time
// falls back to the stored holding so days held survives snapshots that
// omit it.
func convertPositionData(pd models.PositionData, previous map[string]*models.Position, now time.Time) (*models.Position, error) {
	symbol := strings.ToUpper(pd.Symbol)

	quantity, err := decimal.NewFromString(pd.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q: %w", pd.Quantity, err)
	}
	avg, err := decimal.NewFromString(pd.AverageBuyPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid average price %q: %w", pd.AverageBuyPrice, err)
	}

	current := parseDecimalOrZero(pd.CurrentPrice)
	if current.IsZero() && pd.Equity != "" && quantity.IsPositive() {
		current = parseDecimalOrZero(pd.Equity).Div(quantity)
	}

	p := &models.Position{
		Symbol:           symbol,
		Quantity:         quantity,
		AvgEntryPrice:    avg,
		CurrentPrice:     current,
		UnrealizedPnlPct: parseDecimalOrZero(pd.PercentChange),
	}
	if !current.IsZero() {
		p.UnrealizedPnl = current.Sub(avg).Mul(quantity)
	}

	if pd.OpenedAt != nil {
		if t, ok := parseEventTime(*pd.OpenedAt); ok {
			p.OpenedAt = t
		}
	}
	if p.OpenedAt.IsZero() && previous[symbol] != nil {
		p.OpenedAt = previous[symbol].OpenedAt
	}
	if p.OpenedAt.IsZero() {
		p.OpenedAt = now
	}
	p.RefreshDaysHeld(now)
	return p, nil
}

func parseDecimalOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Close closes the Kafka consumer
func (c *PositionsConsumer) Close() error {
	return c.reader.Close()
}
