package strategy

import (
	"math"

	"main/internal/bus"
	"main/internal/indicator"
	"main/internal/model"
)

// BollATRConfig tunes the breakout tactic. Zero values pick the defaults.
type BollATRConfig struct {
	BollPeriod  int
	BollMult    float64
	ATRPeriod   int
	MinATR      float64
	TrailingATR float64
	LossATR     float64
	Amount      float64
}

func (c BollATRConfig) withDefaults() BollATRConfig {
	if c.BollPeriod <= 0 {
		c.BollPeriod = 20
	}
	if c.BollMult <= 0 {
		c.BollMult = 2
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 7
	}
	if c.TrailingATR <= 0 {
		c.TrailingATR = 1.6
	}
	if c.LossATR <= 0 {
		c.LossATR = 2.5
	}
	if c.Amount <= 0 {
		c.Amount = 0.1
	}
	return c
}

// BollATR enters on Bollinger band breakouts confirmed by expanding ATR
// and band width, then manages the position with an ATR trailing stop and
// an ATR loss stop evaluated on raw price ticks.
type BollATR struct {
	cfg BollATRConfig

	maxPrice     float64
	minPrice     float64
	trailingStop float64
	lossStop     float64
}

// NewBollATR builds the tactic wired into a fresh strategy core.
func NewBollATR(b *bus.Bus, cfg BollATRConfig) *Core {
	cfg = cfg.withDefaults()
	t := &BollATR{cfg: cfg}
	return New(b, t,
		indicator.NewBollinger(cfg.BollPeriod, cfg.BollMult),
		indicator.NewATR(cfg.ATRPeriod),
		indicator.NewVolumeSMA(5),
	)
}

func (t *BollATR) Name() string { return "BollATR" }

func (t *BollATR) OnCandle(s *Core, k model.KlineData) {
	close := k.Candle.Close
	boll, ok := lastRecord(s, "BOLL")
	if !ok {
		return
	}
	atrValues := s.Indicator("ATR")
	atr, ok := lastScalar(atrValues)
	if !ok {
		return
	}
	avgATR := emaTail(scalarsOf(atrValues), 5)
	avgWidth := emaTail(fieldsOf(s.Indicator("BOLL"), "width"), 5)

	if _, held := s.Broker().Position(""); held {
		return // exits are handled on price ticks
	}

	expanding := avgATR > t.cfg.MinATR && atr > avgATR && boll["width"] > avgWidth
	switch {
	case close > boll["upper"] && expanding:
		t.maxPrice = close
		t.lossStop = close - t.cfg.LossATR*avgATR
		s.Buy(close, t.cfg.Amount, k.Candle.TimestampMs)
	case close < boll["lower"] && expanding:
		t.minPrice = close
		t.lossStop = close + t.cfg.LossATR*avgATR
		s.Sell(close, t.cfg.Amount, k.Candle.TimestampMs)
	}
}

func (t *BollATR) OnPrice(s *Core, price float64, timestampMs int64) {
	pos, held := s.Broker().Position("")
	if !held {
		return
	}
	atr, ok := lastScalar(s.Indicator("ATR"))
	if !ok {
		return
	}

	if pos.Size > 0 {
		t.maxPrice = math.Max(t.maxPrice, price)
		t.trailingStop = t.maxPrice - t.cfg.TrailingATR*atr
		switch {
		case price <= t.trailingStop:
			t.maxPrice = 0
			s.Sell(price, pos.Size, timestampMs)
		case price <= t.lossStop:
			t.lossStop = 0
			s.Sell(price, pos.Size, timestampMs)
		}
		return
	}

	if pos.Size < 0 {
		t.minPrice = math.Min(t.minPrice, price)
		t.trailingStop = t.minPrice + t.cfg.TrailingATR*atr
		switch {
		case price >= t.trailingStop:
			t.minPrice = 0
			s.Buy(price, -pos.Size, timestampMs)
		case price >= t.lossStop:
			t.lossStop = 0
			s.Buy(price, -pos.Size, timestampMs)
		}
	}
}
