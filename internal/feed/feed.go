// Package feed produces the time-ordered candle and price-tick stream a
// run consumes, either by replaying a historical file or by streaming
// from a live source. Feeds may aggregate native bars into a coarser
// timeframe; the same bucketing serves live emission and historical
// warm-up so both are bit-for-bit consistent.
package feed

import (
	"context"

	"main/internal/bus"
	"main/internal/model"
)

// Feed is the source capability the engine and strategies depend on.
type Feed interface {
	// Init loads or connects to the data source. Must complete before Run.
	Init(ctx context.Context) error
	// Run iterates bars in increasing timestamp order, publishing candle
	// and price events, until the data ends or Stop is called.
	Run(ctx context.Context) error
	Stop()
	Symbol() string
	// Timeframe is the emitted bar size: the aggregate timeframe when
	// configured, otherwise the native one.
	Timeframe() string
	// SourceID names the upstream venue, empty for file replay.
	SourceID() string
	// FetchHistoricalOHLCV returns up to limit bars of history in the
	// emitted timeframe, ascending by timestamp.
	FetchHistoricalOHLCV(ctx context.Context, sourceID, symbol, timeframe string, limit int) ([]model.Candle, error)
}

// emitter publishes candle/price events with change suppression: a candle
// only when its timestamp advances, a price tick only when the close
// moves.
type emitter struct {
	bus           *bus.Bus
	symbol        string
	timeframe     string
	lastTimestamp int64
	lastPrice     float64
}

func (e *emitter) emitCandle(c model.Candle) {
	if c.TimestampMs == e.lastTimestamp {
		return
	}
	e.lastTimestamp = c.TimestampMs
	e.bus.Publish(model.TopicCandle, model.KlineData{
		Symbol:    e.symbol,
		Timeframe: e.timeframe,
		Candle:    c,
	})
}

func (e *emitter) emitPrice(price float64, timestampMs int64) {
	if price == e.lastPrice {
		return
	}
	e.lastPrice = price
	e.bus.Publish(model.TopicPrice, model.PriceTick{Price: price, TimestampMs: timestampMs})
}
