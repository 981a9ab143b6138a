package strategy

import (
	"main/internal/bus"
	"main/internal/indicator"
	"main/internal/model"
)

// BollAdxRsiConfig tunes the trend-confirmation tactic. Zero values pick
// the defaults.
type BollAdxRsiConfig struct {
	BollPeriod int
	BollMult   float64
	RSIPeriod  int
	ADXPeriod  int
	MinADX     float64
	MinWidth   float64
	TakeProfit float64
	StopLoss   float64
	Amount     float64
}

func (c BollAdxRsiConfig) withDefaults() BollAdxRsiConfig {
	if c.BollPeriod <= 0 {
		c.BollPeriod = 106
	}
	if c.BollMult <= 0 {
		c.BollMult = 2
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.ADXPeriod <= 0 {
		c.ADXPeriod = 14
	}
	if c.MinADX <= 0 {
		c.MinADX = 25
	}
	if c.MinWidth <= 0 {
		c.MinWidth = 0.05
	}
	if c.TakeProfit <= 0 {
		c.TakeProfit = 0.04
	}
	if c.StopLoss <= 0 {
		c.StopLoss = 0.02
	}
	if c.Amount <= 0 {
		c.Amount = 0.1
	}
	return c
}

// BollAdxRsi rides band breakouts only when ADX confirms a trend: long at
// the upper band with +DI leading and RSI strong, short at the lower band
// with -DI leading and RSI weak. Positions exit at the middle band on
// bars, or on percentage take-profit/stop-loss checks against raw ticks.
type BollAdxRsi struct {
	cfg BollAdxRsiConfig
}

func NewBollAdxRsi(b *bus.Bus, cfg BollAdxRsiConfig) *Core {
	cfg = cfg.withDefaults()
	return New(b, &BollAdxRsi{cfg: cfg},
		indicator.NewBollinger(cfg.BollPeriod, cfg.BollMult),
		indicator.NewRSI(cfg.RSIPeriod),
		indicator.NewADX(cfg.ADXPeriod),
	)
}

func (t *BollAdxRsi) Name() string { return "BollAdxRsi" }

func (t *BollAdxRsi) OnCandle(s *Core, k model.KlineData) {
	close := k.Candle.Close
	boll, ok := lastRecord(s, "BOLL")
	if !ok {
		return
	}
	adx, ok := lastRecord(s, "ADX")
	if !ok {
		return
	}
	rsi, ok := lastScalar(s.Indicator("RSI"))
	if !ok {
		return
	}

	pos, held := s.Broker().Position("")
	switch {
	case held && pos.Size > 0:
		if close <= boll["middle"] {
			s.Sell(close, pos.Size, k.Candle.TimestampMs)
		}
	case held && pos.Size < 0:
		if close >= boll["middle"] {
			s.Buy(close, -pos.Size, k.Candle.TimestampMs)
		}
	default:
		if adx["adx"] <= t.cfg.MinADX || boll["width"] <= t.cfg.MinWidth {
			return
		}
		if adx["pdi"] > adx["mdi"] && close >= boll["upper"] && rsi > 60 {
			s.Buy(close, t.cfg.Amount, k.Candle.TimestampMs)
		} else if adx["pdi"] < adx["mdi"] && close <= boll["lower"] && rsi < 40 {
			s.Sell(close, t.cfg.Amount, k.Candle.TimestampMs)
		}
	}
}

func (t *BollAdxRsi) OnPrice(s *Core, price float64, timestampMs int64) {
	pos, held := s.Broker().Position("")
	if !held || pos.EntryPrice == 0 {
		return
	}

	if pos.Size > 0 {
		if price >= pos.EntryPrice*(1+t.cfg.TakeProfit) || price <= pos.EntryPrice*(1-t.cfg.StopLoss) {
			s.Sell(price, pos.Size, timestampMs)
		}
		return
	}

	if pos.Size < 0 {
		if price <= pos.EntryPrice*(1-t.cfg.TakeProfit) || price >= pos.EntryPrice*(1+t.cfg.StopLoss) {
			s.Buy(price, -pos.Size, timestampMs)
		}
	}
}
