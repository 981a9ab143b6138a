package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/model"
)

func writeCSV(t *testing.T, rows string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ohlcv.csv")
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	return path
}

func minuteCSV(t *testing.T, startMs int64, n int) string {
	t.Helper()
	rows := "timestamp,open,high,low,close,volume\n"
	for i := 0; i < n; i++ {
		base := 100 + i
		rows += fmt.Sprintf("%d,%d,%d,%d,%d,10\n",
			startMs+int64(i)*60_000, base, base+2, base-2, base+1)
	}
	return writeCSV(t, rows)
}

func TestReplayEmitsNativeBars(t *testing.T) {
	b := bus.New()
	feed, err := NewReplay(b, ReplayConfig{
		Symbol:    "BTC/USDT",
		Timeframe: "1m",
		Path:      minuteCSV(t, 0, 3),
	})
	require.NoError(t, err)

	var candles []model.KlineData
	var prices []model.PriceTick
	b.Subscribe(model.TopicCandle, func(p any) { candles = append(candles, p.(model.KlineData)) })
	b.Subscribe(model.TopicPrice, func(p any) { prices = append(prices, p.(model.PriceTick)) })

	require.NoError(t, feed.Init(context.Background()))
	require.NoError(t, feed.Run(context.Background()))

	require.Len(t, candles, 3)
	assert.Equal(t, "BTC/USDT", candles[0].Symbol)
	assert.Equal(t, "1m", candles[0].Timeframe)
	assert.Equal(t, int64(0), candles[0].Candle.TimestampMs)
	assert.Equal(t, int64(120_000), candles[2].Candle.TimestampMs)
	require.Len(t, prices, 3)
	assert.InDelta(t, 101, prices[0].Price, 1e-9)
}

func TestReplayAggregatesAndFlushesPartialBucket(t *testing.T) {
	b := bus.New()
	feed, err := NewReplay(b, ReplayConfig{
		Symbol:             "BTC/USDT",
		Timeframe:          "1m",
		AggregateTimeframe: "5m",
		Path:               minuteCSV(t, 0, 7),
	})
	require.NoError(t, err)
	assert.Equal(t, "5m", feed.Timeframe())

	var candles []model.KlineData
	var prices []model.PriceTick
	b.Subscribe(model.TopicCandle, func(p any) { candles = append(candles, p.(model.KlineData)) })
	b.Subscribe(model.TopicPrice, func(p any) { prices = append(prices, p.(model.PriceTick)) })

	require.NoError(t, feed.Init(context.Background()))
	require.NoError(t, feed.Run(context.Background()))

	require.Len(t, candles, 2)
	assert.Equal(t, int64(0), candles[0].Candle.TimestampMs)
	assert.InDelta(t, 50, candles[0].Candle.Volume, 1e-9)
	assert.Equal(t, int64(300_000), candles[1].Candle.TimestampMs)
	assert.InDelta(t, 20, candles[1].Candle.Volume, 1e-9)

	// Price ticks keep the native resolution under aggregation.
	assert.Len(t, prices, 7)
}

func TestReplayRejectsFinerAggregate(t *testing.T) {
	_, err := NewReplay(bus.New(), ReplayConfig{
		Symbol:             "BTC/USDT",
		Timeframe:          "5m",
		AggregateTimeframe: "1m",
		Path:               "unused.csv",
	})
	require.ErrorIs(t, err, model.ErrUnsupportedTimeframe)
}

func TestReplayRejectsBadTimeframe(t *testing.T) {
	_, err := NewReplay(bus.New(), ReplayConfig{Symbol: "BTC/USDT", Timeframe: "oops"})
	require.ErrorIs(t, err, model.ErrUnsupportedTimeframe)
}

func TestFetchHistoricalConsumesFromFront(t *testing.T) {
	b := bus.New()
	feed, err := NewReplay(b, ReplayConfig{
		Symbol:             "BTC/USDT",
		Timeframe:          "1m",
		AggregateTimeframe: "5m",
		Path:               minuteCSV(t, 0, 10),
	})
	require.NoError(t, err)
	require.NoError(t, feed.Init(context.Background()))

	history, err := feed.FetchHistoricalOHLCV(context.Background(), "", "BTC/USDT", "5m", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(0), history[0].TimestampMs)
	assert.InDelta(t, 50, history[0].Volume, 1e-9)

	// The replay then starts after the consumed warm-up bars.
	var candles []model.KlineData
	b.Subscribe(model.TopicCandle, func(p any) { candles = append(candles, p.(model.KlineData)) })
	require.NoError(t, feed.Run(context.Background()))
	require.Len(t, candles, 1)
	assert.Equal(t, int64(300_000), candles[0].Candle.TimestampMs)
}

func TestFetchHistoricalMidBucketStartHonorsLimit(t *testing.T) {
	b := bus.New()
	// Native bars begin mid-bucket: the first 5m bucket holds only three
	// 1m bars.
	feed, err := NewReplay(b, ReplayConfig{
		Symbol:             "BTC/USDT",
		Timeframe:          "1m",
		AggregateTimeframe: "5m",
		Path:               minuteCSV(t, 120_000, 8),
	})
	require.NoError(t, err)
	require.NoError(t, feed.Init(context.Background()))

	history, err := feed.FetchHistoricalOHLCV(context.Background(), "", "BTC/USDT", "5m", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(0), history[0].TimestampMs)

	// The in-flight bucket stays with the run loop and is emitted exactly
	// once, never twice for the same bucket timestamp.
	var candles []model.KlineData
	b.Subscribe(model.TopicCandle, func(p any) { candles = append(candles, p.(model.KlineData)) })
	require.NoError(t, feed.Run(context.Background()))

	require.Len(t, candles, 1)
	assert.Equal(t, int64(300_000), candles[0].Candle.TimestampMs)
	assert.Greater(t, candles[0].Candle.TimestampMs, history[0].TimestampMs)
}

func TestFetchHistoricalNeverServesInFlightBucket(t *testing.T) {
	b := bus.New()
	// Seven 1m bars: one whole 5m bucket plus two bars of the next.
	feed, err := NewReplay(b, ReplayConfig{
		Symbol:             "BTC/USDT",
		Timeframe:          "1m",
		AggregateTimeframe: "5m",
		Path:               minuteCSV(t, 0, 7),
	})
	require.NoError(t, err)
	require.NoError(t, feed.Init(context.Background()))

	// Asking for more buckets than are complete returns only the complete
	// one.
	history, err := feed.FetchHistoricalOHLCV(context.Background(), "", "BTC/USDT", "5m", 3)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(0), history[0].TimestampMs)
	assert.InDelta(t, 50, history[0].Volume, 1e-9)
}

func TestReadCandleFileNormalizesAndSkipsHeader(t *testing.T) {
	// Second-resolution timestamps and a header row.
	path := writeCSV(t, "time,open,high,low,close,volume\n1700000000,1,2,0.5,1.5,3\n1700000060,1.5,2.5,1,2,4\n")

	data, err := readCandleFile(path)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, int64(1700000000000), data[0].TimestampMs)
	assert.Equal(t, int64(1700000060000), data[1].TimestampMs)
	assert.InDelta(t, 1.5, data[0].Close, 1e-9)
}

func TestReadCandleFileRejectsShortRows(t *testing.T) {
	path := writeCSV(t, "1700000000,1,2,0.5\n")
	_, err := readCandleFile(path)
	require.Error(t, err)
}

func TestReplayInitFailsOnMissingFile(t *testing.T) {
	feed, err := NewReplay(bus.New(), ReplayConfig{
		Symbol:    "BTC/USDT",
		Timeframe: "1m",
		Path:      filepath.Join(t.TempDir(), "missing.csv"),
	})
	require.NoError(t, err)
	require.Error(t, feed.Init(context.Background()))
}
