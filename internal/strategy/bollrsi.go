package strategy

import (
	"main/internal/bus"
	"main/internal/indicator"
	"main/internal/model"
)

// BollRSIConfig tunes the mean-reversion tactic.
type BollRSIConfig struct {
	BollPeriod int
	BollMult   float64
	RSIPeriod  int
	Amount     float64
}

func (c BollRSIConfig) withDefaults() BollRSIConfig {
	if c.BollPeriod <= 0 {
		c.BollPeriod = 20
	}
	if c.BollMult <= 0 {
		c.BollMult = 2
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.Amount <= 0 {
		c.Amount = 0.0005
	}
	return c
}

// BollRSI fades band extremes confirmed by RSI: short at the upper band
// with RSI overbought, long at the lower band with RSI oversold, exiting
// at the middle band.
type BollRSI struct {
	cfg BollRSIConfig
}

func NewBollRSI(b *bus.Bus, cfg BollRSIConfig) *Core {
	cfg = cfg.withDefaults()
	return New(b, &BollRSI{cfg: cfg},
		indicator.NewBollinger(cfg.BollPeriod, cfg.BollMult),
		indicator.NewRSI(cfg.RSIPeriod),
	)
}

func (t *BollRSI) Name() string { return "BollRSI" }

func (t *BollRSI) OnCandle(s *Core, k model.KlineData) {
	close := k.Candle.Close
	boll, ok := lastRecord(s, "BOLL")
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
		if close >= boll["middle"] {
			s.Sell(close, pos.Size, k.Candle.TimestampMs)
		}
	case held && pos.Size < 0:
		if close <= boll["middle"] {
			s.Buy(close, -pos.Size, k.Candle.TimestampMs)
		}
	default:
		if close >= boll["upper"] && rsi > 70 {
			s.Sell(close, t.cfg.Amount, k.Candle.TimestampMs)
		} else if close <= boll["lower"] && rsi < 30 {
			s.Buy(close, t.cfg.Amount, k.Candle.TimestampMs)
		}
	}
}

func (t *BollRSI) OnPrice(s *Core, price float64, timestampMs int64) {}
