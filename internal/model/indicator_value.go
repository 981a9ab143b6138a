package model

// IndicatorValue is one computed indicator sample: either a scalar or a
// named-field record. Fields being non-nil marks the composite form.
type IndicatorValue struct {
	Value  float64            `json:"value,omitempty"`
	Fields map[string]float64 `json:"fields,omitempty"`
}

// Scalar wraps a single numeric sample.
func Scalar(v float64) IndicatorValue {
	return IndicatorValue{Value: v}
}

// Record wraps a named-field sample, e.g. Bollinger middle/upper/lower.
func Record(fields map[string]float64) IndicatorValue {
	return IndicatorValue{Fields: fields}
}

// Composite reports whether the sample carries named fields.
func (v IndicatorValue) Composite() bool {
	return len(v.Fields) > 0
}
