package indicator

import (
	"math"

	"main/internal/model"
)

// ATR is the average true range with Wilder smoothing, seeded with the
// simple average of the first period true ranges.
type ATR struct {
	series
	period    int
	count     int
	prevClose float64
	sum       float64
	prev      float64
}

func NewATR(period int, opts ...Option) *ATR {
	if period <= 0 {
		period = 14
	}
	return &ATR{series: newSeries("ATR", true, opts), period: period}
}

func (a *ATR) MinPeriods() int { return a.period + 1 }

func (a *ATR) Update(c model.Candle) (model.IndicatorValue, bool) {
	a.count++
	if a.count == 1 {
		a.prevClose = c.Close
		return model.IndicatorValue{}, false
	}

	tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-a.prevClose), math.Abs(c.Low-a.prevClose)))
	a.prevClose = c.Close

	samples := a.count - 1
	switch {
	case samples < a.period:
		a.sum += tr
		return model.IndicatorValue{}, false
	case samples == a.period:
		a.sum += tr
		a.prev = a.sum / float64(a.period)
	default:
		n := float64(a.period)
		a.prev = (a.prev*(n-1) + tr) / n
	}
	return a.push(model.Scalar(a.prev))
}
