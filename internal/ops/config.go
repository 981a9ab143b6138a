// Package ops loads and validates run configuration from .env files and
// process environment, and assembles the fully wired engine from it.
package ops

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/yanun0323/errors"

	"main/internal/model"
)

const (
	ModeBacktest = "backtest"
	ModeLive     = "live"
)

// Config is the full runtime configuration. Environment variables
// override .env entries of the same key.
type Config struct {
	Mode      string `validate:"required,oneof=backtest live"`
	Symbol    string `validate:"required,contains=/"`
	Timeframe string `validate:"required"`
	Strategy  string `validate:"required,oneof=bollatr bollrsi bolladxrsi"`

	// Backtest settings.
	DataPath         string
	DataTimeframe    string
	PaceMs           int64 `validate:"gte=0"`
	InitialBalances  string
	CommissionRate   float64 `validate:"gte=0,lt=1"`
	FlatOnlyDrawdown bool
	ReportPath       string

	// Live settings.
	SourceID        string
	WsURL           string
	RestURL         string
	RetryIntervalMs int64 `validate:"gte=0"`

	// Optional durable statistics store.
	PostgresDSN string
}

// Load reads .env (when present) and the environment, applies defaults
// and validates the result.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	v.SetDefault("MODE", ModeBacktest)
	v.SetDefault("SYMBOL", "BTC/USDT")
	v.SetDefault("TIMEFRAME", "5m")
	v.SetDefault("STRATEGY", "bollatr")
	v.SetDefault("DATA_PATH", "data/ohlcv.csv")
	v.SetDefault("DATA_TIMEFRAME", "1m")
	v.SetDefault("PACE_MS", 0)
	v.SetDefault("INITIAL_BALANCES", "USDT:10000")
	v.SetDefault("COMMISSION_RATE", 0.001)
	v.SetDefault("FLAT_ONLY_DRAWDOWN", false)
	v.SetDefault("REPORT_PATH", "output/report.json")
	v.SetDefault("SOURCE_ID", "binance")
	v.SetDefault("RETRY_INTERVAL_MS", 5000)

	cfg := Config{
		Mode:             v.GetString("MODE"),
		Symbol:           v.GetString("SYMBOL"),
		Timeframe:        v.GetString("TIMEFRAME"),
		Strategy:         strings.ToLower(v.GetString("STRATEGY")),
		DataPath:         v.GetString("DATA_PATH"),
		DataTimeframe:    v.GetString("DATA_TIMEFRAME"),
		PaceMs:           v.GetInt64("PACE_MS"),
		InitialBalances:  v.GetString("INITIAL_BALANCES"),
		CommissionRate:   v.GetFloat64("COMMISSION_RATE"),
		FlatOnlyDrawdown: v.GetBool("FLAT_ONLY_DRAWDOWN"),
		ReportPath:       v.GetString("REPORT_PATH"),
		SourceID:         v.GetString("SOURCE_ID"),
		WsURL:            v.GetString("WS_URL"),
		RestURL:          v.GetString("REST_URL"),
		RetryIntervalMs:  v.GetInt64("RETRY_INTERVAL_MS"),
		PostgresDSN:      v.GetString("POSTGRES_DSN"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "config")
	}
	if _, err := model.TimeframeMs(c.Timeframe); err != nil {
		return errors.Wrapf(err, "TIMEFRAME %q", c.Timeframe)
	}
	if c.Mode == ModeBacktest {
		if _, err := model.TimeframeMs(c.DataTimeframe); err != nil {
			return errors.Wrapf(err, "DATA_TIMEFRAME %q", c.DataTimeframe)
		}
		if _, err := c.Balances(); err != nil {
			return err
		}
	}
	return nil
}

// Balances parses INITIAL_BALANCES entries of the form ASSET:AMOUNT
// separated by commas, e.g. "USDT:10000,BTC:0.5".
func (c Config) Balances() (model.Balances, error) {
	balances := make(model.Balances)
	for _, entry := range strings.Split(c.InitialBalances, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		asset, amount, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, errors.Errorf("INITIAL_BALANCES entry %q: want ASSET:AMOUNT", entry)
		}
		value, err := strconv.ParseFloat(amount, 64)
		if err != nil || value < 0 {
			return nil, errors.Errorf("INITIAL_BALANCES entry %q: bad amount", entry)
		}
		balances[strings.TrimSpace(asset)] = decimal.NewFromFloat(value)
	}
	if len(balances) == 0 {
		return nil, errors.New("INITIAL_BALANCES is empty")
	}
	return balances, nil
}
