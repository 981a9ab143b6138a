// Package strategy runs trading tactics over the candle/price stream:
// it owns the indicator registry, performs historical warm-up, keeps a
// rolling bar history and turns tactic decisions into buy/sell signals.
package strategy

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/bus"
	"main/internal/feed"
	"main/internal/indicator"
	"main/internal/model"
)

// Tactic is the decision logic plugged into a Core: it reacts to each
// completed bar and, optionally, to raw price ticks between bars for
// stop-loss/take-profit checks finer than the bar granularity.
type Tactic interface {
	Name() string
	OnCandle(s *Core, k model.KlineData)
	OnPrice(s *Core, price float64, timestampMs int64)
}

// Core is the strategy runtime shared by every tactic.
type Core struct {
	bus     *bus.Bus
	tactic  Tactic
	broker  broker.Broker
	feed    feed.Feed
	tfMs    int64
	inited  bool
	maxHist int

	names      []string
	indicators map[string]indicator.Indicator
	history    []model.Candle
	lastOrder  *model.Order
}

// New builds a Core for a tactic with its indicators registered by name.
func New(b *bus.Bus, tactic Tactic, indicators ...indicator.Indicator) *Core {
	s := &Core{
		bus:        b,
		tactic:     tactic,
		indicators: make(map[string]indicator.Indicator, len(indicators)),
	}
	for _, ind := range indicators {
		s.AddIndicator(ind)
	}
	return s
}

func (s *Core) Name() string { return s.tactic.Name() }

// AddIndicator registers an indicator; registration order is preserved
// for report overlays.
func (s *Core) AddIndicator(ind indicator.Indicator) {
	if _, exists := s.indicators[ind.Name()]; !exists {
		s.names = append(s.names, ind.Name())
	}
	s.indicators[ind.Name()] = ind
}

// Indicator returns an indicator's value sequence by registry name.
func (s *Core) Indicator(name string) []model.IndicatorValue {
	ind, ok := s.indicators[name]
	if !ok {
		return nil
	}
	return ind.Values()
}

// Indicators returns the registry in registration order.
func (s *Core) Indicators() []indicator.Indicator {
	out := make([]indicator.Indicator, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.indicators[name])
	}
	return out
}

// History returns the retained bars, oldest first, bounded by the warm-up
// period length.
func (s *Core) History() []model.Candle { return s.history }

// Broker exposes the wired broker; position-state truth is read from it,
// never cached locally.
func (s *Core) Broker() broker.Broker { return s.broker }

// LastOrder returns the most recent fill acknowledged to this strategy.
func (s *Core) LastOrder() (model.Order, bool) {
	if s.lastOrder == nil {
		return model.Order{}, false
	}
	return *s.lastOrder, true
}

// Init wires the strategy to a broker and feed, subscribes its event
// handlers exactly once and runs the historical warm-up so indicators are
// never evaluated on insufficient history. A second call is a no-op.
func (s *Core) Init(ctx context.Context, bk broker.Broker, fd feed.Feed) error {
	if s.inited {
		return nil
	}
	s.broker = bk
	s.feed = fd

	tfMs, err := model.TimeframeMs(fd.Timeframe())
	if err != nil {
		return err
	}
	s.tfMs = tfMs

	s.bus.Subscribe(model.TopicCandle, func(payload any) {
		if k, ok := payload.(model.KlineData); ok {
			s.onCandle(k)
		}
	})
	s.bus.Subscribe(model.TopicPrice, func(payload any) {
		if tick, ok := payload.(model.PriceTick); ok {
			s.tactic.OnPrice(s, tick.Price, tick.TimestampMs)
		}
	})
	s.bus.Subscribe(model.TopicOrderFilled, func(payload any) {
		if order, ok := payload.(model.Order); ok {
			s.lastOrder = &order
		}
	})

	if err := s.warmUp(ctx); err != nil {
		return errors.Wrapf(err, "strategy %s warm-up", s.tactic.Name())
	}

	s.inited = true
	return nil
}

// warmUp pulls max(minPeriods) historical bars and feeds them through
// every indicator and the retained history before live bars arrive.
func (s *Core) warmUp(ctx context.Context) error {
	maxPeriod := 0
	for _, name := range s.names {
		if p := s.indicators[name].MinPeriods(); p > maxPeriod {
			maxPeriod = p
		}
	}
	if maxPeriod == 0 {
		return nil
	}
	s.maxHist = maxPeriod

	candles, err := s.feed.FetchHistoricalOHLCV(ctx, s.feed.SourceID(), s.feed.Symbol(), s.feed.Timeframe(), maxPeriod)
	if err != nil {
		return err
	}
	for _, c := range candles {
		for _, name := range s.names {
			s.indicators[name].Update(c)
		}
		s.pushHistory(c)
	}
	logs.Infof("strategy %s: warmed up on %d bars", s.tactic.Name(), len(candles))
	return nil
}

// onCandle advances every indicator, publishes the merged bar+indicator
// event for statistics, extends the history and hands the bar to the
// tactic.
func (s *Core) onCandle(k model.KlineData) {
	values := make(map[string]model.IndicatorValue, len(s.names))
	for _, name := range s.names {
		if v, ok := s.indicators[name].Update(k.Candle); ok {
			values[name] = v
		}
	}

	s.bus.Publish(model.TopicCandleIndicator, model.CandleIndicator{
		Kline:      k,
		Indicators: values,
	})

	s.pushHistory(k.Candle)
	s.tactic.OnCandle(s, k)
}

func (s *Core) pushHistory(c model.Candle) {
	s.history = append(s.history, c)
	if s.maxHist > 0 && len(s.history) > s.maxHist {
		s.history = s.history[len(s.history)-s.maxHist:]
	}
}

// Buy emits signal:buy after checking the broker holds enough quote for
// the trade; otherwise it emits balance:insufficient. The signal
// timestamp is floor-aligned to the active bar boundary so fills stay
// attributable to a specific bar.
func (s *Core) Buy(price, amount float64, timestampMs int64) {
	quote := model.QuoteOf(s.feed.Symbol())
	if !s.broker.HasBalance(quote, price*amount) {
		s.bus.Publish(model.TopicBalanceInsufficient, model.InsufficientBalance{Symbol: quote})
		return
	}
	logs.Infof("strategy %s: buy %.8f @ %.4f", s.tactic.Name(), amount, price)
	s.bus.Publish(model.TopicSignalBuy, model.SignalRequest{
		Price:       price,
		Amount:      amount,
		TimestampMs: model.AlignMs(timestampMs, s.tfMs),
	})
}

// Sell mirrors Buy with the base-asset balance check.
func (s *Core) Sell(price, amount float64, timestampMs int64) {
	base := model.BaseOf(s.feed.Symbol())
	if !s.broker.HasBalance(base, amount) {
		s.bus.Publish(model.TopicBalanceInsufficient, model.InsufficientBalance{Symbol: base})
		return
	}
	logs.Infof("strategy %s: sell %.8f @ %.4f", s.tactic.Name(), amount, price)
	s.bus.Publish(model.TopicSignalSell, model.SignalRequest{
		Price:       price,
		Amount:      amount,
		TimestampMs: model.AlignMs(timestampMs, s.tfMs),
	})
}
