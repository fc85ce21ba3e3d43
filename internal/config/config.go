package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// DefaultUniverse is the trading universe used when none is configured
var DefaultUniverse = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "META",
	"TSLA", "NVDA", "JPM", "V", "JNJ",
	"WMT", "PG", "DIS", "HD", "MA",
	"PYPL", "BAC", "NFLX", "ADBE", "CRM",
}

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `mapstructure:"port" validate:"required"`
	Host string `mapstructure:"host"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host" validate:"required"`
	Port           string `mapstructure:"port" validate:"required"`
	User           string `mapstructure:"user" validate:"required"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname" validate:"required"`
	SSLMode        string `mapstructure:"sslmode" validate:"oneof=disable require verify-ca verify-full"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers" validate:"required,min=1,dive,required"`
	GroupID        string   `mapstructure:"group_id" validate:"required"`
	BarsTopic      string   `mapstructure:"bars_topic" validate:"required"`
	PositionsTopic string   `mapstructure:"positions_topic" validate:"required"`
	FillsTopic     string   `mapstructure:"fills_topic" validate:"required"`
	OrdersTopic    string   `mapstructure:"orders_topic" validate:"required"`
	WatchlistTopic string   `mapstructure:"watchlist_topic" validate:"required"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr      string        `mapstructure:"addr" validate:"required"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db" validate:"gte=0"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	QuoteTTL  time.Duration `mapstructure:"quote_ttl"`
}

// StrategyConfig holds the mean reversion parameters
type StrategyConfig struct {
	LookbackDays   int     `mapstructure:"lookback_days" validate:"gt=0"`
	DropThreshold  float64 `mapstructure:"drop_threshold" validate:"gt=0,lt=1"`
	GainThreshold  float64 `mapstructure:"gain_threshold" validate:"gt=0"`
	MaxHoldingDays int     `mapstructure:"max_holding_days" validate:"gt=0"`
	MaxAdditions   int     `mapstructure:"max_additions" validate:"gte=0"`
}

// TradingConfig holds sizing, scheduling and universe settings
type TradingConfig struct {
	PositionSizePercent  float64           `mapstructure:"position_size_percent" validate:"gt=0,lte=100"`
	CheckIntervalSeconds int               `mapstructure:"check_interval_seconds" validate:"gt=0"`
	Capital              float64           `mapstructure:"capital" validate:"gte=0"`
	Universe             []string          `mapstructure:"universe" validate:"dive,required"`
	HistoryBars          int               `mapstructure:"history_bars" validate:"gte=0"`
	PendingOrderTTL      time.Duration     `mapstructure:"pending_order_ttl"`
	CancelGrace          time.Duration     `mapstructure:"cancel_grace"`
	FillSettleTimeout    time.Duration     `mapstructure:"fill_settle_timeout"`
	MarketHours          MarketHoursConfig `mapstructure:"market_hours"`
}

// MarketHoursConfig gates cycles to the regular session
type MarketHoursConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Timezone string `mapstructure:"timezone" validate:"required_if=Enabled true"`
	Open     string `mapstructure:"open" validate:"required_if=Enabled true"`
	Close    string `mapstructure:"close" validate:"required_if=Enabled true"`
}

// LogConfig holds logging preferences
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// Load reads configuration from defaults, an optional config file and
// BROT_* environment variables, then validates it
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BROT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Trading.MarketHours.Enabled {
		if _, err := c.Trading.MarketHours.Window(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "brot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_path", "db/migrations")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "brot-trading-bot")
	v.SetDefault("kafka.bars_topic", "market-bars")
	v.SetDefault("kafka.positions_topic", "broker-positions")
	v.SetDefault("kafka.fills_topic", "trading-events")
	v.SetDefault("kafka.orders_topic", "order-requests")
	v.SetDefault("kafka.watchlist_topic", "watchlist-events")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "brot")
	v.SetDefault("redis.quote_ttl", 10*time.Minute)

	v.SetDefault("strategy.lookback_days", 7)
	v.SetDefault("strategy.drop_threshold", 0.10)
	v.SetDefault("strategy.gain_threshold", 0.10)
	v.SetDefault("strategy.max_holding_days", 90)
	v.SetDefault("strategy.max_additions", 3)

	v.SetDefault("trading.position_size_percent", 5.0)
	v.SetDefault("trading.check_interval_seconds", 60)
	v.SetDefault("trading.capital", 10000.0)
	v.SetDefault("trading.universe", DefaultUniverse)
	v.SetDefault("trading.history_bars", 0)
	v.SetDefault("trading.pending_order_ttl", 15*time.Minute)
	v.SetDefault("trading.cancel_grace", 5*time.Minute)
	v.SetDefault("trading.fill_settle_timeout", 15*time.Minute)
	v.SetDefault("trading.market_hours.enabled", false)
	v.SetDefault("trading.market_hours.timezone", "America/New_York")
	v.SetDefault("trading.market_hours.open", "09:30")
	v.SetDefault("trading.market_hours.close", "16:00")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// CheckInterval returns the delay between cycles
func (t *TradingConfig) CheckInterval() time.Duration {
	return time.Duration(t.CheckIntervalSeconds) * time.Second
}

// HistoryLength returns how many bars the feed keeps per symbol
func (c *Config) HistoryLength() int {
	if c.Trading.HistoryBars > 0 {
		return c.Trading.HistoryBars
	}
	return c.Strategy.LookbackDays + 10
}

// MarketWindow is a parsed market session
type MarketWindow struct {
	Location *time.Location
	Open     time.Duration
	Close    time.Duration
}

// Window parses the configured session times
func (m *MarketHoursConfig) Window() (*MarketWindow, error) {
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", m.Timezone, err)
	}
	open, err := parseClock(m.Open)
	if err != nil {
		return nil, err
	}
	closeAt, err := parseClock(m.Close)
	if err != nil {
		return nil, err
	}
	if closeAt <= open {
		return nil, errors.New("market close must be after market open")
	}
	return &MarketWindow{Location: loc, Open: open, Close: closeAt}, nil
}

// IsOpen reports whether t falls inside a weekday session
func (w *MarketWindow) IsOpen(t time.Time) bool {
	local := t.In(w.Location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	sinceMidnight := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute
	return sinceMidnight >= w.Open && sinceMidnight < w.Close
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
