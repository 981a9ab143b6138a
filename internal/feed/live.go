package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/model"
)

const (
	defaultWsURL         = "wss://stream.binance.com:9443/ws"
	defaultRestURL       = "https://api.binance.com"
	defaultRetryInterval = 5 * time.Second
)

// LiveConfig describes a streaming run against a binance-shaped venue.
type LiveConfig struct {
	SourceID  string
	Symbol    string
	Timeframe string
	WsURL     string
	RestURL   string
	// RetryInterval is the fixed wait between reconnect attempts after a
	// stream error.
	RetryInterval time.Duration
}

// Live streams klines over a websocket. Transient connection errors are
// retried indefinitely with a fixed backoff; only Stop (or context
// cancellation) ends the loop.
type Live struct {
	emitter
	cfg     LiveConfig
	client  *http.Client
	running atomic.Bool
	conn    atomic.Pointer[websocket.Conn]
}

func NewLive(b *bus.Bus, cfg LiveConfig) (*Live, error) {
	if _, err := model.TimeframeMs(cfg.Timeframe); err != nil {
		return nil, err
	}
	if cfg.WsURL == "" {
		cfg.WsURL = defaultWsURL
	}
	if cfg.RestURL == "" {
		cfg.RestURL = defaultRestURL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.SourceID == "" {
		cfg.SourceID = "binance"
	}
	return &Live{
		emitter: emitter{bus: b, symbol: cfg.Symbol, timeframe: cfg.Timeframe, lastTimestamp: -1},
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (f *Live) Symbol() string { return f.emitter.symbol }

func (f *Live) Timeframe() string { return f.emitter.timeframe }

func (f *Live) SourceID() string { return f.cfg.SourceID }

func (f *Live) Init(ctx context.Context) error { return nil }

func (f *Live) Run(ctx context.Context) error {
	f.running.Store(true)
	for f.running.Load() && ctx.Err() == nil {
		if err := f.stream(ctx); err != nil && f.running.Load() && ctx.Err() == nil {
			logs.Errorf("live feed: %+v, retrying in %s", err, f.cfg.RetryInterval)
			select {
			case <-ctx.Done():
			case <-time.After(f.cfg.RetryInterval):
			}
		}
	}
	f.running.Store(false)
	return nil
}

// Stop flips the run flag and closes the connection so the blocked read
// returns. In-flight handler chains are never interrupted.
func (f *Live) Stop() {
	f.running.Store(false)
	if conn := f.conn.Load(); conn != nil {
		_ = conn.Close()
	}
}

// klineEvent is the venue's kline stream payload.
type klineEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Kline     struct {
		StartTime int64  `json:"t"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
		Closed    bool   `json:"x"`
	} `json:"k"`
}

func (f *Live) stream(ctx context.Context) error {
	url := fmt.Sprintf("%s/%s@kline_%s", f.cfg.WsURL, streamSymbol(f.cfg.Symbol), f.cfg.Timeframe)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	f.conn.Store(conn)
	defer conn.Close()

	logs.Infof("live feed: connected %s", url)
	for f.running.Load() && ctx.Err() == nil {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !f.running.Load() {
				return nil
			}
			return errors.Wrap(err, "read")
		}

		var event klineEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			logs.Errorf("live feed: unmarshal kline: %+v", err)
			continue
		}
		if event.EventType != "kline" {
			continue
		}

		candle, err := event.candle()
		if err != nil {
			logs.Errorf("live feed: parse kline: %+v", err)
			continue
		}
		f.emitCandle(candle)
		f.emitPrice(candle.Close, event.EventTime)
	}
	return nil
}

func (e klineEvent) candle() (model.Candle, error) {
	var (
		c   = model.Candle{TimestampMs: e.Kline.StartTime}
		err error
	)
	if c.Open, err = strconv.ParseFloat(e.Kline.Open, 64); err != nil {
		return c, err
	}
	if c.High, err = strconv.ParseFloat(e.Kline.High, 64); err != nil {
		return c, err
	}
	if c.Low, err = strconv.ParseFloat(e.Kline.Low, 64); err != nil {
		return c, err
	}
	if c.Close, err = strconv.ParseFloat(e.Kline.Close, 64); err != nil {
		return c, err
	}
	if c.Volume, err = strconv.ParseFloat(e.Kline.Volume, 64); err != nil {
		return c, err
	}
	return c, nil
}

// FetchHistoricalOHLCV pulls klines over REST, ascending, length <= limit.
func (f *Live) FetchHistoricalOHLCV(ctx context.Context, sourceID, symbol, timeframe string, limit int) ([]model.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}

	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		f.cfg.RestURL, strings.ToUpper(strings.ReplaceAll(symbol, "/", "")), timeframe, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch klines")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read klines")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetch klines: status %d: %s", resp.StatusCode, body)
	}

	// rows of [openTime, "o", "h", "l", "c", "v", ...]
	var rows [][]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrap(err, "unmarshal klines")
	}

	out := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, errors.Errorf("kline row too short: %d", len(row))
		}
		ts, ok := row[0].(float64)
		if !ok {
			return nil, errors.Errorf("kline open time: unexpected %T", row[0])
		}
		c := model.Candle{TimestampMs: int64(ts)}
		for i, dst := range []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
			s, ok := row[i+1].(string)
			if !ok {
				return nil, errors.Errorf("kline column %d: unexpected %T", i+1, row[i+1])
			}
			if *dst, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, errors.Wrapf(err, "kline column %d", i+1)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// streamSymbol turns "BTC/USDT" into the venue's "btcusdt" form.
func streamSymbol(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "/", ""))
}
