package feed

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
)

// ReplayConfig describes a historical-file replay run.
type ReplayConfig struct {
	Symbol string
	// Timeframe is the native resolution of the file.
	Timeframe string
	// AggregateTimeframe, when set, is a coarser bar size the feed folds
	// native bars into before emitting.
	AggregateTimeframe string
	// Path points at rows of "timestamp,open,high,low,close,volume".
	Path string
	// Pace delays each native bar to mimic intrabar time passing.
	Pace time.Duration
}

// Replay replays a historical bar file for one symbol/timeframe.
type Replay struct {
	emitter
	cfg      ReplayConfig
	nativeMs int64
	bucketMs int64
	data     []model.Candle
	running  atomic.Bool
}

// NewReplay validates the configured timeframes and builds the feed.
// Unsupported timeframe strings fail here, before any run starts.
func NewReplay(b *bus.Bus, cfg ReplayConfig) (*Replay, error) {
	nativeMs, err := model.TimeframeMs(cfg.Timeframe)
	if err != nil {
		return nil, err
	}

	emitted := cfg.Timeframe
	bucketMs := int64(0)
	if cfg.AggregateTimeframe != "" && cfg.AggregateTimeframe != cfg.Timeframe {
		bucketMs, err = model.TimeframeMs(cfg.AggregateTimeframe)
		if err != nil {
			return nil, err
		}
		if bucketMs < nativeMs {
			return nil, errors.Wrapf(model.ErrUnsupportedTimeframe,
				"aggregate %q finer than native %q", cfg.AggregateTimeframe, cfg.Timeframe)
		}
		emitted = cfg.AggregateTimeframe
	}

	return &Replay{
		emitter:  emitter{bus: b, symbol: cfg.Symbol, timeframe: emitted, lastTimestamp: -1},
		cfg:      cfg,
		nativeMs: nativeMs,
		bucketMs: bucketMs,
	}, nil
}

func (f *Replay) Symbol() string { return f.emitter.symbol }

func (f *Replay) Timeframe() string { return f.emitter.timeframe }

func (f *Replay) SourceID() string { return "" }

// Init loads the historical file. A read failure aborts initialization.
func (f *Replay) Init(ctx context.Context) error {
	data, err := readCandleFile(f.cfg.Path)
	if err != nil {
		return errors.Wrapf(err, "read %s", f.cfg.Path)
	}
	sort.Slice(data, func(i, j int) bool { return data[i].TimestampMs < data[j].TimestampMs })
	f.data = data
	logs.Infof("replay feed: %s %s loaded %d bars", f.cfg.Symbol, f.cfg.Timeframe, len(data))
	return nil
}

// Run replays the buffered bars. Everything one bar triggers resolves
// synchronously before the next bar is read.
func (f *Replay) Run(ctx context.Context) error {
	f.running.Store(true)

	var agg *aggregator
	if f.bucketMs > 0 {
		agg = newAggregator(f.bucketMs)
	}

	for _, c := range f.data {
		if !f.running.Load() || ctx.Err() != nil {
			break
		}

		if agg != nil {
			if done, ok := agg.Push(c); ok {
				f.emitCandle(done)
			}
		} else {
			f.emitCandle(c)
		}
		f.emitPrice(c.Close, c.TimestampMs)

		if f.cfg.Pace > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(f.cfg.Pace):
			}
		}
	}

	if agg != nil && f.running.Load() {
		if done, ok := agg.Flush(); ok {
			f.emitCandle(done)
		}
	}

	f.running.Store(false)
	logs.Infof("replay feed: %s %s finished", f.cfg.Symbol, f.emitter.timeframe)
	return nil
}

func (f *Replay) Stop() {
	f.running.Store(false)
}

// FetchHistoricalOHLCV serves warm-up bars from the front of the buffered
// data so the subsequent replay does not re-emit them. When aggregation
// is configured, only whole buckets are consumed: native bars of the
// trailing in-flight bucket stay buffered for the run loop, so a bucket
// is never served as history and then emitted again live.
func (f *Replay) FetchHistoricalOHLCV(ctx context.Context, sourceID, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}

	if f.bucketMs == 0 {
		if limit > len(f.data) {
			limit = len(f.data)
		}
		chunk := f.data[:limit]
		f.data = f.data[limit:]
		return chunk, nil
	}

	consumed := 0
	buckets := 0
	for i := 0; i < len(f.data) && buckets < limit; {
		key := model.AlignMs(f.data[i].TimestampMs, f.bucketMs)
		j := i + 1
		for j < len(f.data) && model.AlignMs(f.data[j].TimestampMs, f.bucketMs) == key {
			j++
		}
		if j == len(f.data) {
			break // in-flight bucket, the run loop owns it
		}
		consumed = j
		buckets++
		i = j
	}

	chunk := f.data[:consumed]
	f.data = f.data[consumed:]
	return Aggregate(chunk, f.bucketMs), nil
}

// readCandleFile parses CSV rows of ts,o,h,l,c,v, tolerating a header row
// and normalizing timestamps to milliseconds by digit count.
func readCandleFile(path string) ([]model.Candle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var out []model.Candle
	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row++

		if len(record) < 6 {
			return nil, errors.Errorf("row %d: want 6 columns, got %d", row, len(record))
		}

		ts, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			if row == 1 {
				continue // header
			}
			return nil, errors.Wrapf(err, "row %d: timestamp", row)
		}

		var fields [5]float64
		for i := 0; i < 5; i++ {
			fields[i], err = strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d: column %d", row, i+1)
			}
		}

		out = append(out, model.Candle{
			TimestampMs: model.NormalizeTimestampMs(ts),
			Open:        fields[0],
			High:        fields[1],
			Low:         fields[2],
			Close:       fields[3],
			Volume:      fields[4],
		})
	}
	return out, nil
}
