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
		logs.Errorf("backtest: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	dataPath := flag.String("data", "", "OHLCV CSV path (overrides DATA_PATH)")
	symbol := flag.String("symbol", "", "trading pair, e.g. BTC/USDT (overrides SYMBOL)")
	timeframe := flag.String("timeframe", "", "bar size to trade, e.g. 5m (overrides TIMEFRAME)")
	strategyName := flag.String("strategy", "", "tactic: bollatr|bollrsi|bolladxrsi (overrides STRATEGY)")
	reportPath := flag.String("report", "", "report output path (overrides REPORT_PATH)")
	flag.Parse()

	cfg, err := ops.Load()
	if err != nil {
		return err
	}
	cfg.Mode = ops.ModeBacktest
	if *dataPath != "" {
		cfg.DataPath = *dataPath
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *timeframe != "" {
		cfg.Timeframe = *timeframe
	}
	if *strategyName != "" {
		cfg.Strategy = *strategyName
	}
	if *reportPath != "" {
		cfg.ReportPath = *reportPath
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

	stats, err := rt.Engine.Backtest(ctx)
	if err != nil {
		return err
	}

	logs.Infof("backtest: done. final balance %v, win %d, lose %d, max drawdown %.2f%%, sharpe %.3f",
		stats.FinalBalance, stats.WinTrades, stats.LoseTrades, stats.MaxDrawdown, stats.SharpeRatio)
	return nil
}
