// Package engine owns the lifetime of one feed, one broker, N strategies
// and one statistics collector, wiring their lifecycles and driving the
// run. All runtime coupling between components goes through the bus.
package engine

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/bus"
	"main/internal/feed"
	"main/internal/indicator"
	"main/internal/model"
	"main/internal/report"
	"main/internal/stats"
	"main/internal/strategy"
)

// Options is the explicit wiring for one run. Every component receives
// the same bus instance at construction; the engine never reaches into
// global state.
type Options struct {
	Bus        *bus.Bus
	Feed       feed.Feed
	Broker     broker.Broker
	Strategies []*strategy.Core
	Statistics *stats.Collector
	// Report receives the generated DataStats after a backtest. Optional.
	Report report.Sink
}

type Engine struct {
	bus        *bus.Bus
	feed       feed.Feed
	broker     broker.Broker
	strategies []*strategy.Core
	statistics *stats.Collector
	report     report.Sink
	tfMs       int64
}

func New(opts Options) (*Engine, error) {
	switch {
	case opts.Bus == nil:
		return nil, errors.New("engine: bus is required")
	case opts.Feed == nil:
		return nil, errors.New("engine: feed is required")
	case opts.Broker == nil:
		return nil, errors.New("engine: broker is required")
	case opts.Statistics == nil:
		return nil, errors.New("engine: statistics is required")
	}

	tfMs, err := model.TimeframeMs(opts.Feed.Timeframe())
	if err != nil {
		return nil, err
	}

	return &Engine{
		bus:        opts.Bus,
		feed:       opts.Feed,
		broker:     opts.Broker,
		strategies: opts.Strategies,
		statistics: opts.Statistics,
		report:     opts.Report,
		tfMs:       tfMs,
	}, nil
}

// AlignTime floors a raw timestamp down to the active bar boundary.
func (e *Engine) AlignTime(timestampMs int64) int64 {
	return model.AlignMs(timestampMs, e.tfMs)
}

func (e *Engine) Timeframe() string { return e.feed.Timeframe() }

func (e *Engine) Symbol() string { return e.feed.Symbol() }

func (e *Engine) Strategies() []*strategy.Core { return e.strategies }

// AddStrategy registers another strategy before initialization.
func (e *Engine) AddStrategy(s *strategy.Core) {
	e.strategies = append(e.strategies, s)
}

// Initialize runs broker-init, then feed-init, then each strategy-init.
// The order matters: strategy warm-up needs the feed's history loaded and
// the broker's initial balance event already published.
func (e *Engine) Initialize(ctx context.Context) error {
	e.statistics.Bind(e)

	if err := e.broker.Init(); err != nil {
		return errors.Wrap(err, "broker init")
	}
	if err := e.feed.Init(ctx); err != nil {
		return errors.Wrap(err, "feed init")
	}
	for _, s := range e.strategies {
		if err := s.Init(ctx, e.broker, e.feed); err != nil {
			return errors.Wrap(err, "strategy init")
		}
	}
	return nil
}

// Run initializes everything and hands control to the live feed loop.
func (e *Engine) Run(ctx context.Context) error {
	logs.Infof("engine: starting live feed %s %s", e.Symbol(), e.Timeframe())
	if err := e.Initialize(ctx); err != nil {
		return err
	}
	return e.feed.Run(ctx)
}

// Backtest replays the feed to completion, then generates the report.
// Only the first strategy's indicators are surfaced as overlays.
func (e *Engine) Backtest(ctx context.Context) (model.DataStats, error) {
	logs.Infof("engine: starting backtest %s %s", e.Symbol(), e.Timeframe())
	if err := e.Initialize(ctx); err != nil {
		return model.DataStats{}, err
	}
	if err := e.feed.Run(ctx); err != nil {
		return model.DataStats{}, errors.Wrap(err, "feed run")
	}

	var indicators []indicator.Indicator
	if len(e.strategies) > 0 {
		indicators = e.strategies[0].Indicators()
	}
	dataStats, err := e.statistics.Report(indicators)
	if err != nil {
		return model.DataStats{}, errors.Wrap(err, "generate report")
	}

	if e.report != nil {
		if err := e.report.Generate(dataStats); err != nil {
			return dataStats, errors.Wrap(err, "report sink")
		}
	}
	return dataStats, nil
}
