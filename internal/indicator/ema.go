package indicator

import "main/internal/model"

// EMA is an exponential moving average over close prices, seeded with the
// simple average of the first period bars.
type EMA struct {
	series
	period int
	count  int
	sum    float64
	prev   float64
}

func NewEMA(period int, opts ...Option) *EMA {
	if period <= 0 {
		period = 14
	}
	return &EMA{series: newSeries("EMA", true, opts), period: period}
}

func (e *EMA) MinPeriods() int { return e.period }

func (e *EMA) Update(c model.Candle) (model.IndicatorValue, bool) {
	e.count++
	switch {
	case e.count < e.period:
		e.sum += c.Close
		return model.IndicatorValue{}, false
	case e.count == e.period:
		e.sum += c.Close
		e.prev = e.sum / float64(e.period)
	default:
		k := 2.0 / float64(e.period+1)
		e.prev = (c.Close-e.prev)*k + e.prev
	}
	return e.push(model.Scalar(e.prev))
}
