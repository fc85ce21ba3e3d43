package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/bot"
	"github.com/trogers1052/brot-trading-bot/internal/broker"
	"github.com/trogers1052/brot-trading-bot/internal/cache"
	"github.com/trogers1052/brot-trading-bot/internal/config"
	"github.com/trogers1052/brot-trading-bot/internal/database"
	"github.com/trogers1052/brot-trading-bot/internal/feed"
	"github.com/trogers1052/brot-trading-bot/internal/kafka"
	"github.com/trogers1052/brot-trading-bot/internal/orders"
	"github.com/trogers1052/brot-trading-bot/internal/strategy"
	"github.com/trogers1052/brot-trading-bot/internal/tracker"
)

// app holds the wired components shared by run and cycle
type app struct {
	cfg        *config.Config
	db         *database.DB
	cache      *cache.Store
	producer   *kafka.Producer
	dispatcher *bot.Dispatcher
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}

	store := cache.New(cfg.Redis)
	if err := store.Ping(ctx); err != nil {
		db.Close()
		store.Close()
		return nil, err
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.WatchlistTopic)

	var market *config.MarketWindow
	if cfg.Trading.MarketHours.Enabled {
		market, err = cfg.Trading.MarketHours.Window()
		if err != nil {
			db.Close()
			store.Close()
			producer.Close()
			return nil, fmt.Errorf("failed to parse market hours: %w", err)
		}
	}

	tr := tracker.New()
	params := strategy.ParamsFromConfig(cfg.Strategy)
	manager := orders.NewManager(
		decimal.NewFromFloat(cfg.Trading.Capital),
		decimal.NewFromFloat(cfg.Trading.PositionSizePercent),
	)

	dispatcher := bot.New(bot.Deps{
		Broker:    broker.NewPipeline(db, producer),
		Feed:      feed.New(db, store, cfg.HistoryLength()),
		Strategy:  strategy.NewMeanReversion(params, tr),
		Orders:    manager,
		Tracker:   tr,
		TradeLog:  db,
		Additions: store,
		Watchlist: db,
	}, bot.Settings{
		Universe:      cfg.Trading.Universe,
		Interval:      cfg.Trading.CheckInterval(),
		PendingTTL:    cfg.Trading.PendingOrderTTL,
		CancelGrace:   cfg.Trading.CancelGrace,
		SettleTimeout: cfg.Trading.FillSettleTimeout,
		Market:        market,
	})

	if err := dispatcher.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("Starting with empty addition counts")
	}

	log.Info().
		Int("lookback_days", params.LookbackDays).
		Str("drop_threshold", params.DropThreshold.String()).
		Str("gain_threshold", params.GainThreshold.String()).
		Int("max_holding_days", params.MaxHoldingDays).
		Int("max_additions", params.MaxAdditions).
		Int("universe", len(cfg.Trading.Universe)).
		Msg("Trading bot configured")

	return &app{cfg: cfg, db: db, cache: store, producer: producer, dispatcher: dispatcher}, nil
}

func (a *app) Close() {
	if err := a.producer.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close producer")
	}
	if err := a.cache.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close redis client")
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}
