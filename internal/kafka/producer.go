package kafka

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

const eventSource = "brot-trading-bot"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes order requests and watchlist changes
type Producer struct {
	writer         messageWriter
	ordersTopic    string
	watchlistTopic string
}

// NewProducer creates a producer writing to the orders and watchlist topics
func NewProducer(brokers []string, ordersTopic, watchlistTopic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}

	return &Producer{
		writer:         writer,
		ordersTopic:    ordersTopic,
		watchlistTopic: watchlistTopic,
	}
}

// PublishOrderSubmitted asks the broker pipeline to execute order
func (p *Producer) PublishOrderSubmitted(ctx context.Context, order *models.Order) error {
	event := models.OrderEvent{
		EventID:   uuid.NewString(),
		EventType: models.EventOrderSubmitted,
		Source:    eventSource,
		OrderID:   order.OrderID,
		Symbol:    order.Symbol,
		Order:     order,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, p.ordersTopic, order.Symbol, event)
}

// PublishOrderCancelRequested asks the broker pipeline to cancel an order
func (p *Producer) PublishOrderCancelRequested(ctx context.Context, orderID, symbol string) error {
	event := models.OrderEvent{
		EventID:   uuid.NewString(),
		EventType: models.EventOrderCancelRequested,
		Source:    eventSource,
		OrderID:   orderID,
		Symbol:    symbol,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, p.ordersTopic, symbol, event)
}

// PublishSymbolAdded announces a symbol joining the watchlist so the
// market data pipeline starts producing bars for it
func (p *Producer) PublishSymbolAdded(ctx context.Context, symbol string) error {
	return p.publishWatchlist(ctx, models.EventSymbolAdded, symbol)
}

// PublishSymbolRemoved announces a symbol leaving the watchlist
func (p *Producer) PublishSymbolRemoved(ctx context.Context, symbol string) error {
	return p.publishWatchlist(ctx, models.EventSymbolRemoved, symbol)
}

func (p *Producer) publishWatchlist(ctx context.Context, eventType, symbol string) error {
	event := models.WatchlistEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Symbol:    symbol,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, p.watchlistTopic, symbol, event)
}

func (p *Producer) publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
