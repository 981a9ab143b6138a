package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/broker"
	"main/internal/bus"
	"main/internal/indicator"
	"main/internal/model"
)

// stubFeed serves canned warm-up bars and records how much history was
// requested.
type stubFeed struct {
	symbol    string
	timeframe string
	history   []model.Candle
	requested int
}

func (f *stubFeed) Init(context.Context) error { return nil }
func (f *stubFeed) Run(context.Context) error  { return nil }
func (f *stubFeed) Stop()                      {}
func (f *stubFeed) Symbol() string             { return f.symbol }
func (f *stubFeed) Timeframe() string          { return f.timeframe }
func (f *stubFeed) SourceID() string           { return "" }

func (f *stubFeed) FetchHistoricalOHLCV(_ context.Context, _, _, _ string, limit int) ([]model.Candle, error) {
	f.requested = limit
	if limit > len(f.history) {
		limit = len(f.history)
	}
	return f.history[:limit], nil
}

// recordingTactic captures callbacks without trading.
type recordingTactic struct {
	candles []model.KlineData
	prices  []float64
}

func (r *recordingTactic) Name() string { return "recording" }
func (r *recordingTactic) OnCandle(_ *Core, k model.KlineData) {
	r.candles = append(r.candles, k)
}
func (r *recordingTactic) OnPrice(_ *Core, price float64, _ int64) {
	r.prices = append(r.prices, price)
}

func warmupBars(n int) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		v := float64(100 + i)
		out[i] = model.Candle{TimestampMs: int64(i) * 60_000, Open: v, High: v, Low: v, Close: v, Volume: 1}
	}
	return out
}

func newTestCore(t *testing.T, tactic Tactic, quote float64, inds ...indicator.Indicator) (*bus.Bus, *Core, *stubFeed) {
	t.Helper()
	b := bus.New()
	core := New(b, tactic, inds...)
	bk := broker.NewSim(b, "BTC/USDT", model.NewBalances(map[string]float64{"USDT": quote}), nil)
	fd := &stubFeed{symbol: "BTC/USDT", timeframe: "1m", history: warmupBars(50)}
	require.NoError(t, core.Init(context.Background(), bk, fd))
	return b, core, fd
}

func TestWarmUpRequestsLongestIndicatorPeriod(t *testing.T) {
	tactic := &recordingTactic{}
	_, core, fd := newTestCore(t, tactic, 1000,
		indicator.NewSMA(5),
		indicator.NewBollinger(20, 2),
		indicator.NewRSI(7),
	)

	assert.Equal(t, 20, fd.requested)
	assert.Len(t, core.History(), 20)
	// Bollinger has exactly its minimum history, so the first live bar
	// produces a value without any warm-up gap.
	assert.Len(t, core.Indicator("BOLL"), 1)
	assert.Empty(t, tactic.candles, "warm-up bars never reach the tactic")
}

func TestInitIsIdempotent(t *testing.T) {
	b := bus.New()
	tactic := &recordingTactic{}
	core := New(b, tactic, indicator.NewSMA(3))
	bk := broker.NewSim(b, "BTC/USDT", model.NewBalances(map[string]float64{"USDT": 1000}), nil)
	fd := &stubFeed{symbol: "BTC/USDT", timeframe: "1m", history: warmupBars(10)}

	require.NoError(t, core.Init(context.Background(), bk, fd))
	require.NoError(t, core.Init(context.Background(), bk, fd))

	b.Publish(model.TopicCandle, model.KlineData{
		Symbol: "BTC/USDT", Timeframe: "1m",
		Candle: model.Candle{TimestampMs: 600_000, Close: 110},
	})

	assert.Len(t, tactic.candles, 1, "double init must not double-subscribe")
}

func TestOnCandlePublishesIndicatorEvent(t *testing.T) {
	b, _, _ := newTestCore(t, &recordingTactic{}, 1000, indicator.NewSMA(3))

	var got []model.CandleIndicator
	b.Subscribe(model.TopicCandleIndicator, func(p any) { got = append(got, p.(model.CandleIndicator)) })

	b.Publish(model.TopicCandle, model.KlineData{
		Symbol: "BTC/USDT", Timeframe: "1m",
		Candle: model.Candle{TimestampMs: 3_000_000, Close: 120},
	})

	require.Len(t, got, 1)
	assert.Equal(t, int64(3_000_000), got[0].Kline.Candle.TimestampMs)
	require.Contains(t, got[0].Indicators, "SMA")
}

func TestBuyAlignsSignalTimestamp(t *testing.T) {
	b, core, _ := newTestCore(t, &recordingTactic{}, 1000)

	var signals []model.SignalRequest
	b.Subscribe(model.TopicSignalBuy, func(p any) { signals = append(signals, p.(model.SignalRequest)) })

	core.Buy(100, 1, 65_432)

	require.Len(t, signals, 1)
	assert.Equal(t, int64(60_000), signals[0].TimestampMs)
}

func TestBuyWithoutFundsEmitsInsufficient(t *testing.T) {
	b, core, _ := newTestCore(t, &recordingTactic{}, 10)

	var insufficient []model.InsufficientBalance
	signals := 0
	b.Subscribe(model.TopicBalanceInsufficient, func(p any) {
		insufficient = append(insufficient, p.(model.InsufficientBalance))
	})
	b.Subscribe(model.TopicSignalBuy, func(any) { signals++ })

	core.Buy(100, 1, 0)

	require.Len(t, insufficient, 1)
	assert.Equal(t, "USDT", insufficient[0].Symbol)
	assert.Zero(t, signals)
}

func TestSellWithoutBaseEmitsInsufficient(t *testing.T) {
	b, core, _ := newTestCore(t, &recordingTactic{}, 1000)

	var insufficient []model.InsufficientBalance
	b.Subscribe(model.TopicBalanceInsufficient, func(p any) {
		insufficient = append(insufficient, p.(model.InsufficientBalance))
	})

	core.Sell(100, 1, 0)

	require.Len(t, insufficient, 1)
	assert.Equal(t, "BTC", insufficient[0].Symbol)
}

func TestPriceTicksReachTactic(t *testing.T) {
	b, _, _ := newTestCore(t, &recordingTactic{}, 1000)
	tactic := &recordingTactic{}
	core2 := New(b, tactic)
	bk := broker.NewSim(b, "BTC/USDT", model.NewBalances(nil), nil)
	require.NoError(t, core2.Init(context.Background(), bk, &stubFeed{symbol: "BTC/USDT", timeframe: "1m"}))

	b.Publish(model.TopicPrice, model.PriceTick{Price: 123.4, TimestampMs: 1})

	require.Len(t, tactic.prices, 1)
	assert.InDelta(t, 123.4, tactic.prices[0], 1e-9)
}

func TestLastOrderTracksFills(t *testing.T) {
	_, core, _ := newTestCore(t, &recordingTactic{}, 1000)

	_, ok := core.LastOrder()
	assert.False(t, ok)

	core.Buy(100, 1, 60_000)

	order, ok := core.LastOrder()
	require.True(t, ok)
	assert.InDelta(t, 100, order.Price, 1e-9)
}

func TestHistoryIsBoundedByWarmUpLength(t *testing.T) {
	_, core, _ := newTestCore(t, &recordingTactic{}, 1000, indicator.NewSMA(5))
	require.Len(t, core.History(), 5)

	for i := 0; i < 10; i++ {
		core.onCandle(model.KlineData{
			Symbol: "BTC/USDT", Timeframe: "1m",
			Candle: model.Candle{TimestampMs: int64(1000+i) * 60_000, Close: 100},
		})
	}

	assert.Len(t, core.History(), 5)
}

func TestBollATRRegistersIndicators(t *testing.T) {
	core := NewBollATR(bus.New(), BollATRConfig{})
	names := make([]string, 0, 3)
	for _, ind := range core.Indicators() {
		names = append(names, ind.Name())
	}
	assert.Equal(t, []string{"BOLL", "ATR", "MAVolume"}, names)
	assert.Equal(t, "BollATR", core.Name())
}

func TestBollAdxRsiRegistersIndicators(t *testing.T) {
	core := NewBollAdxRsi(bus.New(), BollAdxRsiConfig{})
	names := make([]string, 0, 3)
	for _, ind := range core.Indicators() {
		names = append(names, ind.Name())
	}
	assert.Equal(t, []string{"BOLL", "RSI", "ADX"}, names)
	assert.Equal(t, "BollAdxRsi", core.Name())
}

func TestBollAdxRsiEntersOnConfirmedBreakout(t *testing.T) {
	b := bus.New()
	core := NewBollAdxRsi(b, BollAdxRsiConfig{
		BollPeriod: 3, BollMult: 1, RSIPeriod: 2, ADXPeriod: 2, Amount: 1,
	})
	bk := broker.NewSim(b, "BTC/USDT", model.NewBalances(map[string]float64{"USDT": 1000}), nil)

	// A steep warm-up uptrend pins ADX and RSI high and widens the bands.
	history := make([]model.Candle, 0, 4)
	for i, v := range []float64{100, 110, 121, 133.1} {
		history = append(history, model.Candle{
			TimestampMs: int64(i) * 60_000, Open: v, High: v, Low: v, Close: v, Volume: 1,
		})
	}
	fd := &stubFeed{symbol: "BTC/USDT", timeframe: "1m", history: history}
	require.NoError(t, core.Init(context.Background(), bk, fd))

	var buys []model.SignalRequest
	b.Subscribe(model.TopicSignalBuy, func(p any) { buys = append(buys, p.(model.SignalRequest)) })

	b.Publish(model.TopicCandle, model.KlineData{
		Symbol: "BTC/USDT", Timeframe: "1m",
		Candle: model.Candle{TimestampMs: 240_000, Open: 160, High: 160, Low: 160, Close: 160, Volume: 1},
	})

	require.Len(t, buys, 1)
	assert.InDelta(t, 1, buys[0].Amount, 1e-9)
}

func TestBollAdxRsiManagesPositionOnTicks(t *testing.T) {
	open := func(t *testing.T, usdt, btc float64) (*bus.Bus, *broker.Sim) {
		t.Helper()
		b := bus.New()
		core := NewBollAdxRsi(b, BollAdxRsiConfig{BollPeriod: 3, RSIPeriod: 2, ADXPeriod: 2, Amount: 1})
		bk := broker.NewSim(b, "BTC/USDT",
			model.NewBalances(map[string]float64{"USDT": usdt, "BTC": btc}), nil)
		fd := &stubFeed{symbol: "BTC/USDT", timeframe: "1m", history: warmupBars(10)}
		require.NoError(t, core.Init(context.Background(), bk, fd))
		return b, bk
	}

	t.Run("long takes profit at 4 percent", func(t *testing.T) {
		b, bk := open(t, 1000, 0)
		_, err := bk.Buy(100, 1, 0)
		require.NoError(t, err)

		var sells []model.SignalRequest
		b.Subscribe(model.TopicSignalSell, func(p any) { sells = append(sells, p.(model.SignalRequest)) })

		b.Publish(model.TopicPrice, model.PriceTick{Price: 103.9, TimestampMs: 60_000})
		assert.Empty(t, sells, "inside the profit and loss bands")

		b.Publish(model.TopicPrice, model.PriceTick{Price: 104, TimestampMs: 120_000})
		require.Len(t, sells, 1)
		assert.InDelta(t, 104, sells[0].Price, 1e-9)
	})

	t.Run("long stops out at 2 percent", func(t *testing.T) {
		b, bk := open(t, 1000, 0)
		_, err := bk.Buy(100, 1, 0)
		require.NoError(t, err)

		var sells []model.SignalRequest
		b.Subscribe(model.TopicSignalSell, func(p any) { sells = append(sells, p.(model.SignalRequest)) })

		b.Publish(model.TopicPrice, model.PriceTick{Price: 98, TimestampMs: 60_000})
		require.Len(t, sells, 1)
	})

	t.Run("short takes profit buying back lower", func(t *testing.T) {
		b, bk := open(t, 0, 1)
		_, err := bk.Sell(100, 1, 0)
		require.NoError(t, err)

		var buys []model.SignalRequest
		b.Subscribe(model.TopicSignalBuy, func(p any) { buys = append(buys, p.(model.SignalRequest)) })

		b.Publish(model.TopicPrice, model.PriceTick{Price: 97, TimestampMs: 60_000})
		assert.Empty(t, buys)

		b.Publish(model.TopicPrice, model.PriceTick{Price: 96, TimestampMs: 120_000})
		require.Len(t, buys, 1)
	})
}

func TestBollRSIExitsAtMiddleBand(t *testing.T) {
	b := bus.New()
	core := NewBollRSI(b, BollRSIConfig{BollPeriod: 3, RSIPeriod: 2, Amount: 1})
	bk := broker.NewSim(b, "BTC/USDT",
		model.NewBalances(map[string]float64{"USDT": 1000, "BTC": 1}), nil)
	fd := &stubFeed{symbol: "BTC/USDT", timeframe: "1m", history: warmupBars(10)}
	require.NoError(t, core.Init(context.Background(), bk, fd))

	// Open a long so the tactic is in its managing branch.
	_, err := bk.Buy(100, 1, 0)
	require.NoError(t, err)

	var sells []model.SignalRequest
	b.Subscribe(model.TopicSignalSell, func(p any) { sells = append(sells, p.(model.SignalRequest)) })

	// A close far above the rolling band middle forces the exit.
	b.Publish(model.TopicCandle, model.KlineData{
		Symbol: "BTC/USDT", Timeframe: "1m",
		Candle: model.Candle{TimestampMs: 700_000, Close: 500},
	})

	require.Len(t, sells, 1)
	assert.InDelta(t, 1, sells[0].Amount, 1e-9)
}
