package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/yanun0323/logs"

	"main/internal/ops"
)

func main() {
	if err := run(); err != nil {
		logs.Errorf("live: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	symbol := flag.String("symbol", "", "trading pair, e.g. BTC/USDT (overrides SYMBOL)")
	timeframe := flag.String("timeframe", "", "bar size to trade, e.g. 1m (overrides TIMEFRAME)")
	strategyName := flag.String("strategy", "", "tactic: bollatr|bollrsi|bolladxrsi (overrides STRATEGY)")
	flag.Parse()

	cfg, err := ops.Load()
	if err != nil {
		return err
	}
	cfg.Mode = ops.ModeLive
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *timeframe != "" {
		cfg.Timeframe = *timeframe
	}
	if *strategyName != "" {
		cfg.Strategy = *strategyName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rt, err := ops.Build(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rt.Engine.Run(ctx)
}
