// Package bot runs the trading cycle: reconcile orders, refresh capital
// and holdings, analyze, size and submit.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/broker"
	"github.com/trogers1052/brot-trading-bot/internal/config"
	"github.com/trogers1052/brot-trading-bot/internal/models"
	"github.com/trogers1052/brot-trading-bot/internal/orders"
	"github.com/trogers1052/brot-trading-bot/internal/tracker"
)

// ErrCycleInProgress is returned when a cycle is requested while one runs
var ErrCycleInProgress = errors.New("cycle already in progress")

// Strategy turns histories and holdings into signals
type Strategy interface {
	Analyze(histories map[string][]models.PriceBar, positions map[string]*models.Position) []models.Signal
}

// Feed supplies price data
type Feed interface {
	Histories(ctx context.Context, symbols []string) (map[string][]models.PriceBar, error)
	LatestPrice(ctx context.Context, symbol string, history []models.PriceBar) (decimal.Decimal, bool)
}

// TradeLog records every submitted order
type TradeLog interface {
	CreateTradeLogEntry(e *models.TradeLogEntry) error
}

// AdditionStore persists the tracker between runs
type AdditionStore interface {
	SaveAdditions(ctx context.Context, counts map[string]int) error
	LoadAdditions(ctx context.Context) (map[string]int, error)
}

// Watchlist supplies symbols added at runtime
type Watchlist interface {
	GetWatchedSymbols() ([]string, error)
}

// Deps are the collaborators of a Dispatcher. TradeLog, Additions and
// Watchlist are optional.
type Deps struct {
	Broker    broker.Broker
	Feed      Feed
	Strategy  Strategy
	Orders    *orders.Manager
	Tracker   *tracker.Tracker
	TradeLog  TradeLog
	Additions AdditionStore
	Watchlist Watchlist
}

// Settings tune the cycle
type Settings struct {
	Universe   []string
	Interval   time.Duration
	PendingTTL time.Duration
	// CancelGrace is how long a cancelled order may still fill before the
	// cancel is confirmed
	CancelGrace time.Duration
	// SettleTimeout bounds how long a filled symbol waits for the position
	// snapshot to reflect the fill
	SettleTimeout time.Duration
	// Market is the trading session; nil means always open
	Market *config.MarketWindow
	Now    func() time.Time
}

// Defaults applied by New for unset durations
const (
	DefaultCancelGrace   = 5 * time.Minute
	DefaultSettleTimeout = 15 * time.Minute
)

// CycleResult summarizes one cycle
type CycleResult struct {
	Skipped         bool `json:"skipped"`
	Filled          int  `json:"filled"`
	CancelRequested int  `json:"cancel_requested"`
	Cancelled       int  `json:"cancelled"`
	Signals         int  `json:"signals"`
	Submitted       int  `json:"submitted"`
}

// settlement is a fill the position snapshot has not caught up with
type settlement struct {
	held     decimal.Decimal
	filledAt time.Time
}

// Dispatcher owns the tracker and the order manager and runs cycles one
// at a time
type Dispatcher struct {
	deps     Deps
	settings Settings

	cycleMu sync.Mutex
	// held quantity per order id at submission, guarded by cycleMu
	baselines map[string]decimal.Decimal
	// symbols with a fill not yet in the snapshot, guarded by cycleMu
	settling map[string]settlement

	statusMu sync.RWMutex
	status   Status
}

// New creates a Dispatcher
func New(deps Deps, settings Settings) *Dispatcher {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if settings.Interval <= 0 {
		settings.Interval = time.Minute
	}
	if settings.CancelGrace <= 0 {
		settings.CancelGrace = DefaultCancelGrace
	}
	if settings.SettleTimeout <= 0 {
		settings.SettleTimeout = DefaultSettleTimeout
	}
	return &Dispatcher{
		deps:      deps,
		settings:  settings,
		baselines: make(map[string]decimal.Decimal),
		settling:  make(map[string]settlement),
	}
}

// Restore loads persisted addition counters into the tracker
func (d *Dispatcher) Restore(ctx context.Context) error {
	if d.deps.Additions == nil {
		return nil
	}
	counts, err := d.deps.Additions.LoadAdditions(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore addition counts: %w", err)
	}
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()
	d.deps.Tracker.Restore(counts)
	log.Info().Int("symbols", len(counts)).Msg("Restored addition counts")
	return nil
}

// Run executes cycles until ctx is cancelled. Cancellation is observed
// between cycles; a running cycle always completes.
func (d *Dispatcher) Run(ctx context.Context) error {
	log.Info().Dur("interval", d.settings.Interval).Msg("Dispatcher started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Dispatcher shutting down")
			return nil
		case <-timer.C:
		}

		if ctx.Err() != nil {
			log.Info().Msg("Dispatcher shutting down")
			return nil
		}

		if _, err := d.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("Cycle failed")
		}
		timer.Reset(d.settings.Interval)
	}
}

// RunCycle runs one complete cycle. It returns ErrCycleInProgress when
// another cycle holds the dispatcher.
func (d *Dispatcher) RunCycle(ctx context.Context) (CycleResult, error) {
	if !d.cycleMu.TryLock() {
		return CycleResult{}, ErrCycleInProgress
	}
	defer d.cycleMu.Unlock()

	// Shutdown must not interrupt a cycle halfway through.
	ctx = context.WithoutCancel(ctx)

	started := d.settings.Now()
	d.setRunning(true)
	result, err := d.cycle(ctx, started)
	d.finishCycle(started, result, err)
	return result, err
}

func (d *Dispatcher) cycle(ctx context.Context, now time.Time) (CycleResult, error) {
	var result CycleResult

	if w := d.settings.Market; w != nil && !w.IsOpen(now) {
		log.Info().Time("now", now).Msg("Market closed, skipping cycle")
		result.Skipped = true
		return result, nil
	}

	d.reconcile(ctx, &result, now)

	account, err := d.deps.Broker.GetAccountInfo(ctx)
	switch {
	case errors.Is(err, broker.ErrNoSnapshot):
		log.Info().Str("capital", d.deps.Orders.Capital().StringFixed(2)).Msg("No account snapshot yet, using configured capital")
	case err != nil:
		return result, fmt.Errorf("failed to get account info: %w", err)
	default:
		d.deps.Orders.SyncCapital(account.Cash)
	}

	positions, err := d.deps.Broker.GetPositions(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get positions: %w", err)
	}
	d.settle(positions, now)
	d.syncTracker(positions)

	symbols := d.universe(positions)
	histories, err := d.deps.Feed.Histories(ctx, symbols)
	if err != nil {
		return result, fmt.Errorf("failed to get price histories: %w", err)
	}

	signals := d.deps.Strategy.Analyze(histories, positions)
	result.Signals = len(signals)
	log.Info().Int("symbols", len(symbols)).Int("signals", len(signals)).Msg("Analysis complete")

	for _, signal := range signals {
		if d.submit(ctx, signal, histories[signal.Symbol], positions[signal.Symbol]) {
			result.Submitted++
		}
	}

	d.persistAdditions(ctx)
	return result, nil
}

// reconcile applies fills to pending orders, requests cancels for stale
// ones and confirms cancels that saw no fill within the grace period.
// Cancel-requested orders are still checked for fills.
func (d *Dispatcher) reconcile(ctx context.Context, result *CycleResult, now time.Time) {
	pending := d.deps.Orders.PendingIDs()
	if len(pending) == 0 {
		return
	}

	filled, err := d.deps.Broker.FilledOrders(ctx, pending)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to check fills")
		filled = nil
	}

	for _, id := range pending {
		if !filled[id] {
			continue
		}
		order, err := d.deps.Orders.MarkFilled(id)
		if err != nil {
			log.Warn().Err(err).Str("order_id", id).Msg("Failed to mark order filled")
			continue
		}
		result.Filled++
		if held, ok := d.baselines[id]; ok {
			d.settling[order.Symbol] = settlement{held: held, filledAt: now}
			delete(d.baselines, id)
		}

		if action, ok := trackerAction(order.Intent); ok {
			if err := d.deps.Tracker.Update(order.Symbol, action); err != nil {
				log.Warn().Err(err).Str("symbol", order.Symbol).Msg("Failed to update tracker")
			}
		}
	}

	for _, id := range d.deps.Orders.StalePending(d.settings.PendingTTL) {
		if err := d.deps.Broker.CancelOrder(ctx, id); err != nil {
			log.Warn().Err(err).Str("order_id", id).Msg("Failed to cancel stale order")
			continue
		}
		if err := d.deps.Orders.MarkCancelRequested(id); err == nil {
			result.CancelRequested++
		}
	}

	for _, id := range d.deps.Orders.ExpiredCancels(d.settings.CancelGrace) {
		if err := d.deps.Broker.ConfirmCancel(ctx, id); err != nil {
			log.Warn().Err(err).Str("order_id", id).Msg("Failed to confirm cancel")
			continue
		}
		if _, err := d.deps.Orders.MarkCancelled(id, "pending longer than ttl"); err == nil {
			result.Cancelled++
		}
		delete(d.baselines, id)
	}
}

// settle releases symbols whose snapshot quantity moved off the quantity
// held at submission, or whose fill is older than the settle timeout
func (d *Dispatcher) settle(positions map[string]*models.Position, now time.Time) {
	for symbol, s := range d.settling {
		held := heldQuantity(positions[symbol])
		switch {
		case !held.Equal(s.held):
			log.Debug().Str("symbol", symbol).Str("quantity", held.String()).Msg("Snapshot reflects fill")
		case now.Sub(s.filledAt) >= d.settings.SettleTimeout:
			log.Warn().Str("symbol", symbol).Time("filled_at", s.filledAt).Msg("Snapshot never reflected fill, resuming")
		default:
			continue
		}
		delete(d.settling, symbol)
	}
}

func heldQuantity(p *models.Position) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return p.Quantity
}

func trackerAction(intent models.SignalType) (tracker.Action, bool) {
	switch intent {
	case models.SignalBuy:
		return tracker.Opened, true
	case models.SignalAddPosition:
		return tracker.Added, true
	case models.SignalSell:
		return tracker.Closed, true
	}
	return "", false
}

// syncTracker aligns the tracker with the broker's holdings. Symbols
// still settling are left alone since their snapshot lags the fill.
func (d *Dispatcher) syncTracker(positions map[string]*models.Position) {
	for symbol := range positions {
		if _, settling := d.settling[symbol]; settling {
			continue
		}
		if !d.deps.Tracker.Tracked(symbol) {
			_ = d.deps.Tracker.Update(symbol, tracker.Opened)
		}
	}
	for _, symbol := range d.deps.Tracker.Symbols() {
		_, held := positions[symbol]
		_, settling := d.settling[symbol]
		if held || settling || d.deps.Orders.HasPending(symbol) {
			continue
		}
		_ = d.deps.Tracker.Update(symbol, tracker.Closed)
	}
}

// universe is the configured symbols, the watchlist and every held
// symbol, sorted and deduplicated
func (d *Dispatcher) universe(positions map[string]*models.Position) []string {
	set := make(map[string]struct{}, len(d.settings.Universe)+len(positions))
	for _, s := range d.settings.Universe {
		set[s] = struct{}{}
	}
	if d.deps.Watchlist != nil {
		watched, err := d.deps.Watchlist.GetWatchedSymbols()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load watchlist")
		}
		for _, s := range watched {
			set[s] = struct{}{}
		}
	}
	for s := range positions {
		set[s] = struct{}{}
	}

	symbols := make([]string, 0, len(set))
	for s := range set {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// submit sizes, creates and places an order for signal. It reports
// whether the broker accepted it.
func (d *Dispatcher) submit(ctx context.Context, signal models.Signal, history []models.PriceBar, position *models.Position) bool {
	logger := log.With().Str("symbol", signal.Symbol).Str("signal", string(signal.Type)).Logger()

	if d.deps.Orders.HasPending(signal.Symbol) {
		logger.Info().Msg("Skipping signal, order already pending")
		return false
	}
	if _, settling := d.settling[signal.Symbol]; settling {
		logger.Info().Msg("Skipping signal, waiting for snapshot to reflect fill")
		return false
	}

	price, ok := d.deps.Feed.LatestPrice(ctx, signal.Symbol, history)
	if !ok {
		logger.Warn().Msg("No price available, skipping signal")
		return false
	}

	req := d.deps.Orders.ProcessSignal(signal, price, position)
	if req == nil {
		return false
	}

	order, err := d.deps.Orders.CreateOrder(req)
	if err != nil {
		logger.Error().Err(err).Msg("Order request rejected")
		return false
	}

	brokerID, err := d.deps.Broker.PlaceOrder(ctx, order)
	if err != nil {
		logger.Error().Err(err).Str("order_id", order.OrderID).Msg("Failed to place order")
		if _, rerr := d.deps.Orders.MarkRejected(order.OrderID, err.Error()); rerr != nil {
			logger.Warn().Err(rerr).Msg("Failed to release rejected order")
		}
		return false
	}
	if err := d.deps.Orders.MarkSubmitted(order.OrderID, brokerID); err != nil {
		logger.Warn().Err(err).Msg("Failed to mark order submitted")
	}
	d.baselines[order.OrderID] = heldQuantity(position)

	logger.Info().Str("order_id", order.OrderID).Str("side", string(order.Side)).
		Str("quantity", order.Quantity.String()).Str("price", price.StringFixed(2)).
		Str("reason", signal.Reason).Msg("Order submitted")

	if d.deps.TradeLog != nil {
		entry := &models.TradeLogEntry{
			Timestamp: d.settings.Now(),
			Action:    order.Side,
			Symbol:    order.Symbol,
			Quantity:  order.Quantity,
			Price:     price,
			Reason:    signal.Reason,
			OrderID:   order.OrderID,
		}
		if err := d.deps.TradeLog.CreateTradeLogEntry(entry); err != nil {
			logger.Warn().Err(err).Msg("Failed to write trade log")
		}
	}
	return true
}

func (d *Dispatcher) persistAdditions(ctx context.Context) {
	if d.deps.Additions == nil || !d.deps.Tracker.Dirty() {
		return
	}
	if err := d.deps.Additions.SaveAdditions(ctx, d.deps.Tracker.Snapshot()); err != nil {
		log.Warn().Err(err).Msg("Failed to persist addition counts")
		return
	}
	d.deps.Tracker.MarkClean()
}
