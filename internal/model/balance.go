package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Balances maps asset symbols to available quantity. Quantities never go
// negative; a debit below zero must fail, not clamp.
type Balances map[string]decimal.Decimal

// NewBalances builds a ledger from float amounts.
func NewBalances(amounts map[string]float64) Balances {
	b := make(Balances, len(amounts))
	for symbol, amount := range amounts {
		b[symbol] = decimal.NewFromFloat(amount)
	}
	return b
}

// Get returns the available quantity for symbol, zero when untracked.
func (b Balances) Get(symbol string) decimal.Decimal {
	return b[symbol]
}

// Clone returns an independent snapshot of the ledger.
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for symbol, amount := range b {
		out[symbol] = amount
	}
	return out
}

// SplitSymbol decomposes a pair like "BTC/USDT" into base and quote.
func SplitSymbol(symbol string) (base, quote string) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok {
		return symbol, ""
	}
	return base, quote
}

// BaseOf returns the traded asset of a pair.
func BaseOf(symbol string) string {
	base, _ := SplitSymbol(symbol)
	return base
}

// QuoteOf returns the pricing asset of a pair.
func QuoteOf(symbol string) string {
	_, quote := SplitSymbol(symbol)
	return quote
}
