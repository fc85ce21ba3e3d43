// Package cache keeps short-lived state in Redis: the latest quote per
// symbol and the addition counters the strategy needs across restarts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/config"
)

// Store wraps a Redis client with the bot's key layout
type Store struct {
	client   *redis.Client
	prefix   string
	quoteTTL time.Duration
}

// New connects to Redis using cfg
func New(cfg config.RedisConfig) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewWithClient(client, cfg.KeyPrefix, cfg.QuoteTTL)
}

// NewWithClient builds a Store around an existing client
func NewWithClient(client *redis.Client, prefix string, quoteTTL time.Duration) *Store {
	if prefix == "" {
		prefix = "brot"
	}
	return &Store{client: client, prefix: prefix, quoteTTL: quoteTTL}
}

// Ping checks the server is reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the client
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) quoteKey(symbol string) string {
	return s.prefix + ":quote:" + symbol
}

func (s *Store) additionsKey() string {
	return s.prefix + ":additions"
}

// setQuote writes the quote unless the stored one is newer. ARGV is the
// price, the unix micros of the quote, its RFC 3339 time and the TTL in ms.
var setQuote = redis.NewScript(`
local stored = tonumber(redis.call('HGET', KEYS[1], 'at_us'))
if stored and stored > tonumber(ARGV[2]) then
	return 0
end
redis.call('HSET', KEYS[1], 'price', ARGV[1], 'at_us', ARGV[2], 'at', ARGV[3])
local ttl = tonumber(ARGV[4])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// SetQuote records the latest price for symbol. A quote older than the
// cached one is ignored, so replayed bars cannot roll the price back.
// Quotes expire after the configured TTL so a stalled feed falls back to
// bar closes.
func (s *Store) SetQuote(ctx context.Context, symbol string, price decimal.Decimal, at time.Time) error {
	at = at.UTC()
	written, err := setQuote.Run(ctx, s.client, []string{s.quoteKey(symbol)},
		price.String(), at.UnixMicro(), at.Format(time.RFC3339Nano), s.quoteTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to set quote for %s: %w", symbol, err)
	}
	if written == 0 {
		log.Debug().Str("symbol", symbol).Time("at", at).Msg("Ignoring quote older than cached one")
	}
	return nil
}

// GetQuote returns the cached price for symbol. ok is false when no
// quote is cached.
func (s *Store) GetQuote(ctx context.Context, symbol string) (price decimal.Decimal, at time.Time, ok bool, err error) {
	values, err := s.client.HGetAll(ctx, s.quoteKey(symbol)).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, false, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	raw, found := values["price"]
	if !found {
		return decimal.Zero, time.Time{}, false, nil
	}

	price, err = decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, time.Time{}, false, fmt.Errorf("corrupt quote for %s: %w", symbol, err)
	}
	at, _ = time.Parse(time.RFC3339Nano, values["at"])
	return price, at, true, nil
}

// SaveAdditions replaces the stored addition counters with counts
func (s *Store) SaveAdditions(ctx context.Context, counts map[string]int) error {
	key := s.additionsKey()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(counts) == 0 {
			return nil
		}
		fields := make(map[string]any, len(counts))
		for symbol, n := range counts {
			fields[symbol] = n
		}
		pipe.HSet(ctx, key, fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save addition counts: %w", err)
	}
	return nil
}

// LoadAdditions returns the stored addition counters
func (s *Store) LoadAdditions(ctx context.Context) (map[string]int, error) {
	values, err := s.client.HGetAll(ctx, s.additionsKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load addition counts: %w", err)
	}

	counts := make(map[string]int, len(values))
	for symbol, raw := range values {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt addition count for %s: %w", symbol, err)
		}
		counts[symbol] = n
	}
	return counts, nil
}
