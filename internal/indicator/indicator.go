// Package indicator provides stateful incremental calculators consumed by
// strategies. Each indicator owns an append-only value sequence keyed
// one-to-one to the candle sequence it was fed.
package indicator

import "main/internal/model"

// Indicator is the update/query contract the engine core depends on.
// Update advances the calculator with one bar and reports whether enough
// history existed to produce a value. MinPeriods is the number of
// historical bars required before the first value appears.
type Indicator interface {
	Name() string
	Update(c model.Candle) (model.IndicatorValue, bool)
	MinPeriods() int
	Drawable() bool
	Values() []model.IndicatorValue
}

// Option adjusts an indicator's name or whether it is exported to reports.
type Option func(*series)

// WithName overrides the registry name.
func WithName(name string) Option {
	return func(s *series) { s.name = name }
}

// WithDraw controls whether the indicator is rendered in reports.
func WithDraw(draw bool) Option {
	return func(s *series) { s.draw = draw }
}

// series is the shared identity + value-sequence state embedded by every
// concrete indicator.
type series struct {
	name   string
	draw   bool
	values []model.IndicatorValue
}

func newSeries(name string, draw bool, opts []Option) series {
	s := series{name: name, draw: draw}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s *series) Name() string { return s.name }

func (s *series) Drawable() bool { return s.draw }

func (s *series) Values() []model.IndicatorValue { return s.values }

func (s *series) push(v model.IndicatorValue) (model.IndicatorValue, bool) {
	s.values = append(s.values, v)
	return v, true
}

// Last returns the most recent value of a sequence.
func Last(values []model.IndicatorValue) (model.IndicatorValue, bool) {
	if len(values) == 0 {
		return model.IndicatorValue{}, false
	}
	return values[len(values)-1], true
}
