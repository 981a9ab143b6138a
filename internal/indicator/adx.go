package indicator

import (
	"math"

	"main/internal/model"
)

// ADX is the average directional index with Wilder smoothing, emitting
// adx/pdi/mdi records. The first value appears after 2*period bars: one
// period to seed the smoothed TR and directional movement, another to
// seed the DX average. Not drawn by default since it does not share the
// price axis.
type ADX struct {
	series
	period int
	count  int

	prevHigh  float64
	prevLow   float64
	prevClose float64

	smoothTR  float64
	smoothPDM float64
	smoothMDM float64

	dxSum float64
	dxN   int
	adx   float64
}

func NewADX(period int, opts ...Option) *ADX {
	if period <= 0 {
		period = 14
	}
	a := &ADX{series: newSeries("ADX", false, nil), period: period}
	for _, opt := range opts {
		opt(&a.series)
	}
	return a
}

func (a *ADX) MinPeriods() int { return 2 * a.period }

func (a *ADX) Update(c model.Candle) (model.IndicatorValue, bool) {
	a.count++
	if a.count == 1 {
		a.prevHigh, a.prevLow, a.prevClose = c.High, c.Low, c.Close
		return model.IndicatorValue{}, false
	}

	tr := math.Max(c.High-c.Low, math.Max(math.Abs(c.High-a.prevClose), math.Abs(c.Low-a.prevClose)))
	upMove := c.High - a.prevHigh
	downMove := a.prevLow - c.Low
	pdm, mdm := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}
	a.prevHigh, a.prevLow, a.prevClose = c.High, c.Low, c.Close

	n := float64(a.period)
	samples := a.count - 1
	if samples <= a.period {
		a.smoothTR += tr
		a.smoothPDM += pdm
		a.smoothMDM += mdm
		if samples < a.period {
			return model.IndicatorValue{}, false
		}
	} else {
		a.smoothTR += tr - a.smoothTR/n
		a.smoothPDM += pdm - a.smoothPDM/n
		a.smoothMDM += mdm - a.smoothMDM/n
	}

	pdi, mdi := 0.0, 0.0
	if a.smoothTR > 0 {
		pdi = 100 * a.smoothPDM / a.smoothTR
		mdi = 100 * a.smoothMDM / a.smoothTR
	}
	dx := 0.0
	if pdi+mdi > 0 {
		dx = 100 * math.Abs(pdi-mdi) / (pdi + mdi)
	}

	if a.dxN < a.period {
		a.dxSum += dx
		a.dxN++
		if a.dxN < a.period {
			return model.IndicatorValue{}, false
		}
		a.adx = a.dxSum / n
	} else {
		a.adx = (a.adx*(n-1) + dx) / n
	}

	return a.push(model.Record(map[string]float64{
		"adx": a.adx,
		"pdi": pdi,
		"mdi": mdi,
	}))
}
