package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SignalType is the action a strategy asks for
type SignalType string

// Signal type constants
const (
	SignalBuy         SignalType = "BUY"
	SignalSell        SignalType = "SELL"
	SignalAddPosition SignalType = "ADD_POSITION"
)

// ExitCause records which exit rule produced a SELL
type ExitCause string

// Exit cause constants
const (
	ExitProfitTarget ExitCause = "PROFIT_TARGET"
	ExitMaxHolding   ExitCause = "MAX_HOLDING"
)

// SignalDetails is the per-type payload carried by a Signal.
// Only EntryDetails, AdditionDetails and ExitDetails implement it.
type SignalDetails interface {
	signalType() SignalType
}

// EntryDetails accompanies a BUY signal
type EntryDetails struct {
	EntryPrice decimal.Decimal `json:"entry_price"`
}

func (EntryDetails) signalType() SignalType { return SignalBuy }

// AdditionDetails accompanies an ADD_POSITION signal.
// Addition is the 1-based index of the addition being requested.
type AdditionDetails struct {
	Addition int `json:"addition"`
}

func (AdditionDetails) signalType() SignalType { return SignalAddPosition }

// ExitDetails accompanies a SELL signal
type ExitDetails struct {
	Cause ExitCause `json:"cause"`
}

func (ExitDetails) signalType() SignalType { return SignalSell }

// Signal is a trading decision produced by a strategy for one symbol
type Signal struct {
	Timestamp    time.Time     `json:"timestamp"`
	Symbol       string        `json:"symbol"`
	Type         SignalType    `json:"signal_type"`
	StrategyName string        `json:"strategy_name"`
	Confidence   float64       `json:"confidence"`
	Reason       string        `json:"reason"`
	Details      SignalDetails `json:"details,omitempty"`
}

// NewSignal builds a signal whose type is taken from its details
func NewSignal(ts time.Time, symbol, strategy string, confidence float64, reason string, details SignalDetails) Signal {
	return Signal{
		Timestamp:    ts,
		Symbol:       symbol,
		Type:         details.signalType(),
		StrategyName: strategy,
		Confidence:   confidence,
		Reason:       reason,
		Details:      details,
	}
}

// Entry returns the BUY payload
func (s Signal) Entry() (EntryDetails, bool) {
	d, ok := s.Details.(EntryDetails)
	return d, ok
}

// Addition returns the ADD_POSITION payload
func (s Signal) Addition() (AdditionDetails, bool) {
	d, ok := s.Details.(AdditionDetails)
	return d, ok
}

// Exit returns the SELL payload
func (s Signal) Exit() (ExitDetails, bool) {
	d, ok := s.Details.(ExitDetails)
	return d, ok
}

// IsEntry reports whether the signal asks to buy shares
func (s Signal) IsEntry() bool {
	return s.Type == SignalBuy || s.Type == SignalAddPosition
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %s (%.2f): %s", s.Type, s.Symbol, s.Confidence, s.Reason)
}
