package indicator

import "main/internal/model"

// RSI is the relative strength index with Wilder smoothing. The first
// value appears after period+1 bars (one bar to seed the close delta).
type RSI struct {
	series
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
}

func NewRSI(period int, opts ...Option) *RSI {
	if period <= 0 {
		period = 14
	}
	return &RSI{series: newSeries("RSI", true, opts), period: period}
}

func (r *RSI) MinPeriods() int { return r.period + 1 }

func (r *RSI) Update(c model.Candle) (model.IndicatorValue, bool) {
	r.count++
	if r.count == 1 {
		r.prevClose = c.Close
		return model.IndicatorValue{}, false
	}

	change := c.Close - r.prevClose
	r.prevClose = c.Close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	samples := r.count - 1
	if samples <= r.period {
		r.avgGain += gain / float64(r.period)
		r.avgLoss += loss / float64(r.period)
		if samples < r.period {
			return model.IndicatorValue{}, false
		}
	} else {
		n := float64(r.period)
		r.avgGain = (r.avgGain*(n-1) + gain) / n
		r.avgLoss = (r.avgLoss*(n-1) + loss) / n
	}

	if r.avgLoss == 0 {
		return r.push(model.Scalar(100))
	}
	rs := r.avgGain / r.avgLoss
	return r.push(model.Scalar(100 - 100/(1+rs)))
}
