package ops

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeBacktest, cfg.Mode)
	assert.Equal(t, "BTC/USDT", cfg.Symbol)
	assert.Equal(t, "5m", cfg.Timeframe)
	assert.Equal(t, "1m", cfg.DataTimeframe)
	assert.Equal(t, "bollatr", cfg.Strategy)
	assert.InDelta(t, 0.001, cfg.CommissionRate, 1e-12)
	assert.Equal(t, "binance", cfg.SourceID)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SYMBOL", "ETH/USDT")
	t.Setenv("TIMEFRAME", "15m")
	t.Setenv("STRATEGY", "BollRSI")
	t.Setenv("INITIAL_BALANCES", "USDT:5000,ETH:2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ETH/USDT", cfg.Symbol)
	assert.Equal(t, "15m", cfg.Timeframe)
	assert.Equal(t, "bollrsi", cfg.Strategy, "strategy name is lowercased")

	balances, err := cfg.Balances()
	require.NoError(t, err)
	assert.True(t, balances.Get("USDT").Equal(decimal.NewFromInt(5000)))
	assert.True(t, balances.Get("ETH").Equal(decimal.NewFromInt(2)))
}

func TestLoadRejectsUnknownStrategy(t *testing.T) {
	t.Setenv("STRATEGY", "martingale")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadTimeframe(t *testing.T) {
	t.Setenv("TIMEFRAME", "5x")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsSymbolWithoutQuote(t *testing.T) {
	t.Setenv("SYMBOL", "BTCUSDT")
	_, err := Load()
	require.Error(t, err)
}

func TestBalancesParsing(t *testing.T) {
	testCases := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "USDT:10000"},
		{raw: "USDT:10000, BTC:0.5"},
		{raw: ""},
		{raw: "USDT", wantErr: true},
		{raw: "USDT:abc", wantErr: true},
		{raw: "USDT:-5", wantErr: true},
	}
	for _, tc := range testCases {
		cfg := Config{InitialBalances: tc.raw}
		_, err := cfg.Balances()
		if tc.wantErr || tc.raw == "" {
			assert.Errorf(t, err, "raw %q", tc.raw)
		} else {
			assert.NoErrorf(t, err, "raw %q", tc.raw)
		}
	}
}

func TestBuildBacktestRuntime(t *testing.T) {
	t.Setenv("DATA_PATH", "testdata/nonexistent.csv")

	cfg, err := Load()
	require.NoError(t, err)

	rt, err := Build(cfg)
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "BTC/USDT", rt.Engine.Symbol())
	assert.Equal(t, "5m", rt.Engine.Timeframe())
	require.Len(t, rt.Engine.Strategies(), 1)
	assert.Equal(t, "BollATR", rt.Engine.Strategies()[0].Name())
}

func TestBuildSelectsConfiguredStrategy(t *testing.T) {
	t.Setenv("STRATEGY", "bolladxrsi")

	cfg, err := Load()
	require.NoError(t, err)

	rt, err := Build(cfg)
	require.NoError(t, err)
	defer rt.Close()

	require.Len(t, rt.Engine.Strategies(), 1)
	assert.Equal(t, "BollAdxRsi", rt.Engine.Strategies()[0].Name())
}

func TestBuildRejectsUnknownMode(t *testing.T) {
	_, err := buildFeed(Config{Mode: "paper"}, nil)
	require.Error(t, err)
}
