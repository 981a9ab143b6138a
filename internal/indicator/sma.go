package indicator

import "main/internal/model"

// SMA is a simple moving average computed with a rolling sum so each
// update stays O(1).
type SMA struct {
	series
	period int
	window []float64
	sum    float64
	sample func(model.Candle) float64
}

func NewSMA(period int, opts ...Option) *SMA {
	return newSMA(period, "SMA", func(c model.Candle) float64 { return c.Close }, opts)
}

// NewVolumeSMA averages bar volume instead of close price. Not drawn by
// default since volume does not share the price axis.
func NewVolumeSMA(period int, opts ...Option) *SMA {
	s := newSMA(period, "MAVolume", func(c model.Candle) float64 { return c.Volume }, nil)
	s.draw = false
	for _, opt := range opts {
		opt(&s.series)
	}
	return s
}

func newSMA(period int, name string, sample func(model.Candle) float64, opts []Option) *SMA {
	if period <= 0 {
		period = 14
	}
	return &SMA{
		series: newSeries(name, true, opts),
		period: period,
		window: make([]float64, 0, period),
		sample: sample,
	}
}

func (s *SMA) MinPeriods() int { return s.period }

func (s *SMA) Update(c model.Candle) (model.IndicatorValue, bool) {
	v := s.sample(c)
	if len(s.window) < s.period {
		s.window = append(s.window, v)
		s.sum += v
		if len(s.window) < s.period {
			return model.IndicatorValue{}, false
		}
	} else {
		s.sum += v - s.window[0]
		copy(s.window, s.window[1:])
		s.window[s.period-1] = v
	}
	return s.push(model.Scalar(s.sum / float64(s.period)))
}
