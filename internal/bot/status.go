package bot

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// Status is a point-in-time view of the dispatcher for the API
type Status struct {
	Running           bool            `json:"running"`
	Cycles            int64           `json:"cycles"`
	LastCycleAt       time.Time       `json:"last_cycle_at,omitempty"`
	LastCycleDuration time.Duration   `json:"last_cycle_duration_ns"`
	LastResult        CycleResult     `json:"last_result"`
	LastError         string          `json:"last_error,omitempty"`
	Capital           decimal.Decimal `json:"capital"`
	AvailableCapital  decimal.Decimal `json:"available_capital"`
	Reserved          decimal.Decimal `json:"reserved"`
	Pending           []models.Order  `json:"pending"`
	Additions         map[string]int  `json:"additions"`
	// AwaitingSnapshot lists symbols held back until a fill shows up in
	// the position snapshot
	AwaitingSnapshot []string `json:"awaiting_snapshot"`
}

// Status returns the state recorded at the end of the last cycle
func (d *Dispatcher) Status() Status {
	d.statusMu.RLock()
	defer d.statusMu.RUnlock()

	s := d.status
	s.Pending = append([]models.Order(nil), d.status.Pending...)
	s.AwaitingSnapshot = append([]string(nil), d.status.AwaitingSnapshot...)
	s.Additions = make(map[string]int, len(d.status.Additions))
	for k, v := range d.status.Additions {
		s.Additions[k] = v
	}
	return s
}

func (d *Dispatcher) setRunning(running bool) {
	d.statusMu.Lock()
	d.status.Running = running
	d.statusMu.Unlock()
}

// finishCycle copies dispatcher-owned state into the status snapshot.
// Called with cycleMu held.
func (d *Dispatcher) finishCycle(started time.Time, result CycleResult, err error) {
	pending := d.deps.Orders.PendingOrders()
	additions := d.deps.Tracker.Snapshot()
	capital := d.deps.Orders.Capital()
	available := d.deps.Orders.AvailableCapital()
	reserved := d.deps.Orders.Reserved()
	awaiting := make([]string, 0, len(d.settling))
	for symbol := range d.settling {
		awaiting = append(awaiting, symbol)
	}
	sort.Strings(awaiting)

	d.statusMu.Lock()
	defer d.statusMu.Unlock()

	d.status.Running = false
	d.status.Cycles++
	d.status.LastCycleAt = started
	d.status.LastCycleDuration = d.settings.Now().Sub(started)
	d.status.LastResult = result
	d.status.LastError = ""
	if err != nil {
		d.status.LastError = err.Error()
	}
	d.status.Capital = capital
	d.status.AvailableCapital = available
	d.status.Reserved = reserved
	d.status.Pending = pending
	d.status.Additions = additions
	d.status.AwaitingSnapshot = awaiting
}
