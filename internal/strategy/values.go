package strategy

import "main/internal/model"

// Tail-access helpers tactics share when reading indicator sequences.

func lastScalar(values []model.IndicatorValue) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1].Value, true
}

func lastRecord(s *Core, name string) (map[string]float64, bool) {
	values := s.Indicator(name)
	if len(values) == 0 {
		return nil, false
	}
	last := values[len(values)-1]
	if !last.Composite() {
		return nil, false
	}
	return last.Fields, true
}

func scalarsOf(values []model.IndicatorValue) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.Value
	}
	return out
}

func fieldsOf(values []model.IndicatorValue, field string) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.Fields[field]
	}
	return out
}

// emaTail smooths the trailing window of a sequence and returns the last
// smoothed value, zero when the sequence is empty.
func emaTail(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) > period {
		values = values[len(values)-period:]
	}
	alpha := 2.0 / float64(period+1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}
