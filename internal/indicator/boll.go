package indicator

import (
	"math"

	"main/internal/model"
)

// Bollinger computes middle/upper/lower bands plus relative band width
// over a rolling window of closes.
type Bollinger struct {
	series
	period int
	mult   float64
	window []float64
}

func NewBollinger(period int, mult float64, opts ...Option) *Bollinger {
	if period <= 0 {
		period = 20
	}
	if mult <= 0 {
		mult = 2
	}
	return &Bollinger{
		series: newSeries("BOLL", true, opts),
		period: period,
		mult:   mult,
		window: make([]float64, 0, period),
	}
}

func (b *Bollinger) MinPeriods() int { return b.period }

func (b *Bollinger) Update(c model.Candle) (model.IndicatorValue, bool) {
	if len(b.window) < b.period {
		b.window = append(b.window, c.Close)
		if len(b.window) < b.period {
			return model.IndicatorValue{}, false
		}
	} else {
		copy(b.window, b.window[1:])
		b.window[b.period-1] = c.Close
	}

	mean := 0.0
	for _, v := range b.window {
		mean += v
	}
	mean /= float64(b.period)

	variance := 0.0
	for _, v := range b.window {
		variance += (v - mean) * (v - mean)
	}
	std := math.Sqrt(variance / float64(b.period))

	upper := mean + b.mult*std
	lower := mean - b.mult*std
	width := 0.0
	if mean != 0 {
		width = (upper - lower) / mean
	}
	return b.push(model.Record(map[string]float64{
		"middle": mean,
		"upper":  upper,
		"lower":  lower,
		"width":  width,
	}))
}
