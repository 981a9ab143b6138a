package ops

import (
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/bus"
	"main/internal/engine"
	"main/internal/feed"
	"main/internal/report"
	"main/internal/stats"
	"main/internal/store"
	"main/internal/strategy"
)

// Runtime is a fully wired engine plus the resources it owns.
type Runtime struct {
	Engine *engine.Engine
	close  []func() error
}

// Close releases resources in reverse acquisition order.
func (r *Runtime) Close() {
	for i := len(r.close) - 1; i >= 0; i-- {
		if err := r.close[i](); err != nil {
			logs.Errorf("ops: close: %+v", err)
		}
	}
}

// Build assembles bus, feed, broker, strategy and statistics from the
// configuration.
func Build(cfg Config) (*Runtime, error) {
	b := bus.New()
	rt := &Runtime{}

	fd, err := buildFeed(cfg, b)
	if err != nil {
		return nil, err
	}

	balances, err := cfg.Balances()
	if err != nil {
		return nil, err
	}
	bk := broker.NewSim(b, cfg.Symbol, balances, broker.NewPercent(cfg.CommissionRate))

	tactic, err := buildStrategy(cfg, b)
	if err != nil {
		return nil, err
	}

	statOpts := []stats.Option{}
	if cfg.FlatOnlyDrawdown {
		statOpts = append(statOpts, stats.WithFlatOnlyDrawdown())
	}
	if cfg.PostgresDSN != "" {
		st, err := store.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, errors.Wrap(err, "open store")
		}
		rt.close = append(rt.close, st.Close)
		statOpts = append(statOpts, stats.WithArchiver(st))
	}
	collector := stats.New(b, statOpts...)

	eng, err := engine.New(engine.Options{
		Bus:        b,
		Feed:       fd,
		Broker:     bk,
		Strategies: []*strategy.Core{tactic},
		Statistics: collector,
		Report:     report.NewFileSink(cfg.ReportPath),
	})
	if err != nil {
		return nil, err
	}
	rt.Engine = eng
	return rt, nil
}

func buildFeed(cfg Config, b *bus.Bus) (feed.Feed, error) {
	switch cfg.Mode {
	case ModeBacktest:
		return feed.NewReplay(b, feed.ReplayConfig{
			Symbol:             cfg.Symbol,
			Timeframe:          cfg.DataTimeframe,
			AggregateTimeframe: cfg.Timeframe,
			Path:               cfg.DataPath,
			Pace:               time.Duration(cfg.PaceMs) * time.Millisecond,
		})
	case ModeLive:
		return feed.NewLive(b, feed.LiveConfig{
			SourceID:      cfg.SourceID,
			Symbol:        cfg.Symbol,
			Timeframe:     cfg.Timeframe,
			WsURL:         cfg.WsURL,
			RestURL:       cfg.RestURL,
			RetryInterval: time.Duration(cfg.RetryIntervalMs) * time.Millisecond,
		})
	default:
		return nil, errors.Errorf("unknown mode %q", cfg.Mode)
	}
}

func buildStrategy(cfg Config, b *bus.Bus) (*strategy.Core, error) {
	switch cfg.Strategy {
	case "bollatr":
		return strategy.NewBollATR(b, strategy.BollATRConfig{}), nil
	case "bollrsi":
		return strategy.NewBollRSI(b, strategy.BollRSIConfig{}), nil
	case "bolladxrsi":
		return strategy.NewBollAdxRsi(b, strategy.BollAdxRsiConfig{}), nil
	default:
		return nil, errors.Errorf("unknown strategy %q", cfg.Strategy)
	}
}
