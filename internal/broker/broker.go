// Package broker executes buy/sell signals against tracked balances and
// positions, applying commission and republishing the resulting state
// changes on the bus.
package broker

import (
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
)

// ErrInsufficientBalance reports a debit that exceeds the available funds.
// It is fatal to the specific order and never silently downgraded.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Broker is the sink capability strategies and the engine depend on.
type Broker interface {
	// Init publishes balance:init once so downstream listeners can seed
	// their baseline.
	Init() error
	Buy(price, amount float64, timestampMs int64) (model.Order, error)
	Sell(price, amount float64, timestampMs int64) (model.Order, error)
	// FetchBalances returns a snapshot of the current ledger.
	FetchBalances() model.Balances
	Balance(symbol string) decimal.Decimal
	// HasBalance reports whether at least amount of symbol is available.
	HasBalance(symbol string, amount float64) bool
	Position(symbol string) (model.Position, bool)
	Symbol() string
}

// Commission prices the fee of a fill in the quote asset.
type Commission interface {
	Calculate(price, amount float64) float64
}

// Percent charges a fixed fraction of the traded notional, e.g. 0.001 for
// 0.1%.
type Percent struct {
	rate float64
}

func NewPercent(rate float64) Percent {
	return Percent{rate: rate}
}

func (p Percent) Calculate(price, amount float64) float64 {
	return price * amount * p.rate
}
