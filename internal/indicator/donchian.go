package indicator

import "main/internal/model"

// Donchian tracks the highest high and lowest low over the window. Values
// appear from the first bar; the channel simply widens as history grows.
type Donchian struct {
	series
	period int
	highs  []float64
	lows   []float64
}

func NewDonchian(period int, opts ...Option) *Donchian {
	if period <= 0 {
		period = 20
	}
	d := &Donchian{series: newSeries("Donchian", false, nil), period: period}
	for _, opt := range opts {
		opt(&d.series)
	}
	return d
}

func (d *Donchian) MinPeriods() int { return d.period }

func (d *Donchian) Update(c model.Candle) (model.IndicatorValue, bool) {
	d.highs = append(d.highs, c.High)
	d.lows = append(d.lows, c.Low)
	if len(d.highs) > d.period {
		d.highs = d.highs[1:]
		d.lows = d.lows[1:]
	}

	upper := d.highs[0]
	for _, v := range d.highs[1:] {
		if v > upper {
			upper = v
		}
	}
	lower := d.lows[0]
	for _, v := range d.lows[1:] {
		if v < lower {
			lower = v
		}
	}
	return d.push(model.Record(map[string]float64{
		"upper":  upper,
		"lower":  lower,
		"middle": (upper + lower) / 2,
	}))
}
