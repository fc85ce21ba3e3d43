// Package strategy turns price histories and open positions into trading
// signals.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/config"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// Name is the strategy name stamped on every signal
const Name = "MeanReversion"

// Signal confidences per rule
const (
	ConfidenceProfitTarget = 0.8
	ConfidenceMaxHolding   = 1.0
	ConfidenceAddPosition  = 0.7
	ConfidenceEntry        = 0.8
)

var (
	// ErrInsufficientHistory is returned when a series is shorter than lookback+1 bars
	ErrInsufficientHistory = errors.New("insufficient price history")
	// ErrInvalidReferencePrice is returned when the reference close is zero or negative
	ErrInvalidReferencePrice = errors.New("invalid reference price")
)

var hundred = decimal.NewFromInt(100)

// AdditionCounts is the read-only view of the pyramiding counters
type AdditionCounts interface {
	Additions(symbol string) int
}

// Params holds the strategy thresholds
type Params struct {
	LookbackDays   int
	DropThreshold  decimal.Decimal
	GainThreshold  decimal.Decimal
	MaxHoldingDays int
	MaxAdditions   int
}

// ParamsFromConfig converts the configured thresholds to decimals
func ParamsFromConfig(cfg config.StrategyConfig) Params {
	return Params{
		LookbackDays:   cfg.LookbackDays,
		DropThreshold:  decimal.NewFromFloat(cfg.DropThreshold),
		GainThreshold:  decimal.NewFromFloat(cfg.GainThreshold),
		MaxHoldingDays: cfg.MaxHoldingDays,
		MaxAdditions:   cfg.MaxAdditions,
	}
}

// MeanReversion buys after a drop over the lookback window, adds to losing
// positions a bounded number of times, and exits on a profit target or after
// a maximum holding period.
type MeanReversion struct {
	params    Params
	additions AdditionCounts
	now       func() time.Time
}

// Option configures a MeanReversion
type Option func(*MeanReversion)

// WithClock overrides the signal timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *MeanReversion) {
		s.now = now
	}
}

// NewMeanReversion creates the strategy. additions is read, never written.
func NewMeanReversion(params Params, additions AdditionCounts, opts ...Option) *MeanReversion {
	s := &MeanReversion{
		params:    params,
		additions: additions,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the strategy name
func (s *MeanReversion) Name() string {
	return Name
}

// Params returns the thresholds in use
func (s *MeanReversion) Params() Params {
	return s.params
}

// Analyze evaluates every symbol with enough history and returns at most one
// signal per symbol, ordered by ascending symbol. Symbols with too little
// history or a degenerate reference price are skipped and logged.
func (s *MeanReversion) Analyze(histories map[string][]models.PriceBar, positions map[string]*models.Position) []models.Signal {
	symbols := make([]string, 0, len(histories))
	for symbol := range histories {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	timestamp := s.now()
	signals := make([]models.Signal, 0)

	for _, symbol := range symbols {
		bars := histories[symbol]

		returnPct, err := WindowedReturn(bars, s.params.LookbackDays)
		if errors.Is(err, ErrInsufficientHistory) {
			log.Info().Str("symbol", symbol).Int("bars", len(bars)).
				Int("required", s.params.LookbackDays+1).Msg("Insufficient data, skipping")
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("Data quality problem, skipping")
			continue
		}

		lastClose := bars[len(bars)-1].Close
		signal, ok := s.evaluate(timestamp, symbol, returnPct, positions[symbol], lastClose)
		if ok {
			signals = append(signals, signal)
		}
	}

	return signals
}

// evaluate applies the rules in fixed order; the first match wins
func (s *MeanReversion) evaluate(ts time.Time, symbol string, returnPct decimal.Decimal, position *models.Position, lastClose decimal.Decimal) (models.Signal, bool) {
	dropped := returnPct.LessThanOrEqual(s.params.DropThreshold.Neg())
	dropPct := returnPct.Abs().Mul(hundred).StringFixed(1)

	if position == nil {
		if !dropped {
			return models.Signal{}, false
		}
		return models.NewSignal(ts, symbol, Name, ConfidenceEntry,
			fmt.Sprintf("Price dropped %s%% in %d days", dropPct, s.params.LookbackDays),
			models.EntryDetails{EntryPrice: lastClose},
		), true
	}

	if position.UnrealizedPnlPct.GreaterThanOrEqual(s.params.GainThreshold.Mul(hundred)) {
		return models.NewSignal(ts, symbol, Name, ConfidenceProfitTarget,
			fmt.Sprintf("Position up %s%% - taking profits", position.UnrealizedPnlPct.StringFixed(1)),
			models.ExitDetails{Cause: models.ExitProfitTarget},
		), true
	}

	if position.DaysHeld >= s.params.MaxHoldingDays {
		return models.NewSignal(ts, symbol, Name, ConfidenceMaxHolding,
			fmt.Sprintf("Position held for %d days - max holding period reached", position.DaysHeld),
			models.ExitDetails{Cause: models.ExitMaxHolding},
		), true
	}

	additions := 0
	if s.additions != nil {
		additions = s.additions.Additions(symbol)
	}
	if dropped && additions < s.params.MaxAdditions {
		return models.NewSignal(ts, symbol, Name, ConfidenceAddPosition,
			fmt.Sprintf("Adding to position - down %s%% in %d days", dropPct, s.params.LookbackDays),
			models.AdditionDetails{Addition: additions + 1},
		), true
	}

	return models.Signal{}, false
}

// WindowedReturn is the point-to-point change between the last close and the
// close lookback bars before it: (last - ref) / ref
func WindowedReturn(bars []models.PriceBar, lookback int) (decimal.Decimal, error) {
	if lookback < 0 || len(bars) < lookback+1 {
		return decimal.Zero, ErrInsufficientHistory
	}

	last := bars[len(bars)-1].Close
	ref := bars[len(bars)-1-lookback].Close
	if !ref.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: reference close %s", ErrInvalidReferencePrice, ref)
	}

	return last.Sub(ref).Div(ref), nil
}
