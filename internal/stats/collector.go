// Package stats passively observes the event stream and builds the
// enriched bar series and aggregate performance metrics of a run.
package stats

import (
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/model/enum"
)

// ErrSymbolMismatch reports an order for a symbol the collector is not
// tracking. It indicates a wiring bug and is not recovered from.
var ErrSymbolMismatch = errors.New("symbol mismatch")

// Engine is the read-only coordination surface the collector needs: bar
// boundary alignment and the tracked symbol/timeframe.
type Engine interface {
	AlignTime(timestampMs int64) int64
	Symbol() string
	Timeframe() string
}

// Archiver persists observations as they happen so a report can later be
// rebuilt without replaying the event stream. Optional.
type Archiver interface {
	SaveLine(symbol, timeframe string, timeMs int64, c model.Candle) error
	SaveIndicators(symbol, timeframe string, timeMs int64, values map[string]model.IndicatorValue) error
	SaveTrade(symbol, timeframe string, order model.Order, profit float64, closing bool) error
	SaveBalances(symbol, timeframe string, timeMs int64, b model.Balances) error
}

// Option adjusts collector behavior.
type Option func(*Collector)

// WithFlatOnlyDrawdown restores the legacy drawdown policy: only equity
// points where the base balance equals its initial value are considered,
// which understates drawdown while a position is open.
func WithFlatOnlyDrawdown() Option {
	return func(c *Collector) { c.flatOnly = true }
}

// WithArchiver streams every observation into a durable store.
func WithArchiver(a Archiver) Option {
	return func(c *Collector) { c.archiver = a }
}

// Collector accumulates report state from bus events. All mutation runs
// on the single feed-driven control flow.
type Collector struct {
	engine   Engine
	flatOnly bool
	archiver Archiver

	symbol string
	base   string
	quote  string

	initial   model.Balances
	final     model.Balances
	profits   []float64
	fees      float64
	lastOrder *model.Order

	lines  []model.Line
	trades []model.Trade
	equity []model.EquityPoint
}

// New subscribes a collector to the bus. Bind must run before the broker
// publishes balance:init.
func New(b *bus.Bus, opts ...Option) *Collector {
	c := &Collector{}
	for _, opt := range opts {
		opt(c)
	}

	b.Subscribe(model.TopicBalanceInit, func(payload any) {
		if balances, ok := payload.(model.Balances); ok {
			c.onBalanceInit(balances)
		}
	})
	b.Subscribe(model.TopicBalanceUpdate, func(payload any) {
		if update, ok := payload.(model.BalanceUpdate); ok {
			c.onBalanceUpdate(update)
		}
	})
	b.Subscribe(model.TopicCandleIndicator, func(payload any) {
		if data, ok := payload.(model.CandleIndicator); ok {
			c.onCandle(data)
		}
	})
	b.Subscribe(model.TopicOrderFilled, func(payload any) {
		if order, ok := payload.(model.Order); ok {
			c.onFill(order)
		}
	})
	b.Subscribe(model.TopicPositionClosed, func(payload any) {
		if order, ok := payload.(model.Order); ok {
			c.onPositionClose(order)
		}
	})

	return c
}

// Bind attaches the engine queries and fixes the tracked symbol.
func (c *Collector) Bind(e Engine) {
	c.engine = e
	c.symbol = e.Symbol()
	c.base, c.quote = model.SplitSymbol(e.Symbol())
}

func (c *Collector) alignTime(timestampMs int64) int64 {
	if c.engine == nil {
		return timestampMs
	}
	return c.engine.AlignTime(timestampMs)
}

func (c *Collector) timeframe() string {
	if c.engine == nil {
		return ""
	}
	return c.engine.Timeframe()
}

func (c *Collector) onBalanceInit(balances model.Balances) {
	c.initial = balances.Clone()
	c.final = balances.Clone()
	c.equity = append(c.equity, model.EquityPoint{TimeMs: 0, Value: balances.Clone()})
	if c.archiver != nil {
		if err := c.archiver.SaveBalances(c.symbol, c.timeframe(), 0, balances); err != nil {
			logs.Errorf("stats: archive initial balances: %+v", err)
		}
	}
}

func (c *Collector) onBalanceUpdate(update model.BalanceUpdate) {
	c.final = update.Balances.Clone()
	c.equity = append(c.equity, model.EquityPoint{
		TimeMs: c.alignTime(update.TimestampMs),
		Value:  update.Balances.Clone(),
	})
	if c.archiver != nil {
		if err := c.archiver.SaveBalances(c.symbol, c.timeframe(), c.alignTime(update.TimestampMs), update.Balances); err != nil {
			logs.Errorf("stats: archive balances: %+v", err)
		}
	}
}

func (c *Collector) onCandle(data model.CandleIndicator) {
	if c.symbol == "" {
		c.symbol = data.Kline.Symbol
		c.base, c.quote = model.SplitSymbol(data.Kline.Symbol)
	}
	timeMs := c.alignTime(data.Kline.Candle.TimestampMs)
	c.lines = append(c.lines, model.Line{
		TimeMs: timeMs,
		Open:   data.Kline.Candle.Open,
		High:   data.Kline.Candle.High,
		Low:    data.Kline.Candle.Low,
		Close:  data.Kline.Candle.Close,
		Volume: data.Kline.Candle.Volume,
		Price:  data.Kline.Candle.Close,
	})
	if c.archiver != nil {
		if err := c.archiver.SaveLine(data.Kline.Symbol, data.Kline.Timeframe, timeMs, data.Kline.Candle); err != nil {
			logs.Errorf("stats: archive line: %+v", err)
		}
		if err := c.archiver.SaveIndicators(data.Kline.Symbol, data.Kline.Timeframe, timeMs, data.Indicators); err != nil {
			logs.Errorf("stats: archive indicators: %+v", err)
		}
	}
}

func (c *Collector) saveTrade(order model.Order) error {
	if c.symbol != "" && order.Symbol != c.symbol {
		return errors.Wrapf(ErrSymbolMismatch, "tracking %s, got %s", c.symbol, order.Symbol)
	}
	c.trades = append(c.trades, model.Trade{
		TimeMs: c.alignTime(order.TimestampMs),
		Price:  order.Price,
		Side:   order.Side,
	})
	return nil
}

func (c *Collector) onFill(order model.Order) {
	if err := c.saveTrade(order); err != nil {
		logs.Errorf("stats: fill: %+v", err)
		return
	}
	saved := order
	c.lastOrder = &saved
	c.fees += order.Fee

	if c.archiver != nil {
		if err := c.archiver.SaveTrade(order.Symbol, c.timeframe(), order, 0, false); err != nil {
			logs.Errorf("stats: archive fill: %+v", err)
		}
	}
}

// onPositionClose realizes the round-trip PnL: (exit-entry)*amount for
// longs, sign flipped for shorts.
func (c *Collector) onPositionClose(order model.Order) {
	if err := c.saveTrade(order); err != nil {
		logs.Errorf("stats: close: %+v", err)
		return
	}

	if c.lastOrder == nil {
		return
	}
	var pnl float64
	if c.lastOrder.Side == enum.SideBuy {
		pnl = (order.Price - c.lastOrder.Price) * order.Amount
	} else {
		pnl = (c.lastOrder.Price - order.Price) * order.Amount
	}
	c.profits = append(c.profits, pnl)
	c.lastOrder = nil

	if c.archiver != nil {
		if err := c.archiver.SaveTrade(order.Symbol, c.timeframe(), order, pnl, true); err != nil {
			logs.Errorf("stats: archive trade: %+v", err)
		}
	}
}
