package feed

import "main/internal/model"

// aggregator folds native-resolution bars into coarser buckets keyed by
// floor(timestamp/bucketMs)*bucketMs. Open comes from the bucket's first
// bar, high/low extend, close tracks the latest bar, volume accumulates.
type aggregator struct {
	bucketMs int64
	key      int64
	current  model.Candle
	open     bool
}

func newAggregator(bucketMs int64) *aggregator {
	return &aggregator{bucketMs: bucketMs}
}

// Push merges one native bar and, on bucket rollover, returns the
// completed previous bucket.
func (a *aggregator) Push(c model.Candle) (model.Candle, bool) {
	key := model.AlignMs(c.TimestampMs, a.bucketMs)
	if !a.open {
		a.start(key, c)
		return model.Candle{}, false
	}
	if key == a.key {
		if c.High > a.current.High {
			a.current.High = c.High
		}
		if c.Low < a.current.Low {
			a.current.Low = c.Low
		}
		a.current.Close = c.Close
		a.current.Volume += c.Volume
		return model.Candle{}, false
	}

	done := a.current
	a.start(key, c)
	return done, true
}

// Flush returns the in-flight bucket, if any, and resets the aggregator.
func (a *aggregator) Flush() (model.Candle, bool) {
	if !a.open {
		return model.Candle{}, false
	}
	done := a.current
	a.open = false
	return done, true
}

func (a *aggregator) start(key int64, c model.Candle) {
	a.key = key
	a.open = true
	a.current = model.Candle{
		TimestampMs: key,
		Open:        c.Open,
		High:        c.High,
		Low:         c.Low,
		Close:       c.Close,
		Volume:      c.Volume,
	}
}

// Aggregate buckets an already-ordered slice of native bars, including
// the trailing partial bucket.
func Aggregate(candles []model.Candle, bucketMs int64) []model.Candle {
	agg := newAggregator(bucketMs)
	out := make([]model.Candle, 0, len(candles))
	for _, c := range candles {
		if done, ok := agg.Push(c); ok {
			out = append(out, done)
		}
	}
	if done, ok := agg.Flush(); ok {
		out = append(out, done)
	}
	return out
}
