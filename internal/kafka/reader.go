package kafka

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

func newReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})
}

// consume reads messages until ctx is cancelled, handing each to handle.
// Handler errors are logged and do not stop the loop.
func consume(ctx context.Context, reader messageReader, handle func(kafka.Message) error) error {
	topic := reader.Config().Topic
	log.Info().Str("topic", topic).Msg("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("topic", topic).Msg("Kafka consumer shutting down")
			return reader.Close()
		default:
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					log.Info().Str("topic", topic).Msg("Kafka consumer shutting down")
					return reader.Close()
				}
				log.Error().Err(err).Str("topic", topic).Msg("Error reading message")
				continue
			}

			if err := handle(msg); err != nil {
				log.Error().Err(err).Str("topic", topic).
					Int("partition", msg.Partition).Int64("offset", msg.Offset).
					Msg("Error processing message")
			}
		}
	}
}

func parseEventTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
