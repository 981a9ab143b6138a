package model

import "strconv"

// Candle is an OHLCV summary over one time bucket. Immutable once emitted.
type Candle struct {
	TimestampMs int64   `json:"timestamp"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
}

// KlineData is a candle tagged with its instrument and bar size. It is the
// unit exchanged over the bus.
type KlineData struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Candle    Candle `json:"candle"`
}

// NormalizeTimestampMs converts a raw timestamp into milliseconds by
// inspecting its digit count: 10 digits are seconds, 16 digits are
// microseconds, anything else is assumed to already be milliseconds.
func NormalizeTimestampMs(ts int64) int64 {
	switch len(strconv.FormatInt(ts, 10)) {
	case 10:
		return ts * 1000
	case 16:
		return ts / 1000
	default:
		return ts
	}
}
