// Package store persists run observations to PostgreSQL so reports can
// be rebuilt later without replaying the source data.
package store

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/stats"
	"main/pkg/conn"
)

// LineRow is one archived bar.
type LineRow struct {
	ID        uint   `gorm:"primaryKey"`
	Symbol    string `gorm:"size:32;uniqueIndex:idx_line_key"`
	Timeframe string `gorm:"size:8;uniqueIndex:idx_line_key"`
	TimeMs    int64  `gorm:"uniqueIndex:idx_line_key"`
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

func (LineRow) TableName() string { return "lines" }

// IndicatorRow holds the indicator values computed on one bar, as JSON.
type IndicatorRow struct {
	ID        uint   `gorm:"primaryKey"`
	Symbol    string `gorm:"size:32;uniqueIndex:idx_indicator_key"`
	Timeframe string `gorm:"size:8;uniqueIndex:idx_indicator_key"`
	TimeMs    int64  `gorm:"uniqueIndex:idx_indicator_key"`
	Values    string `gorm:"type:jsonb"`
}

func (IndicatorRow) TableName() string { return "indicators" }

// TradeRow is one archived fill. Closing rows carry the realized
// round-trip profit.
type TradeRow struct {
	ID        uint   `gorm:"primaryKey"`
	Symbol    string `gorm:"size:32;index:idx_trade_key"`
	Timeframe string `gorm:"size:8;index:idx_trade_key"`
	TimeMs    int64  `gorm:"index:idx_trade_key"`
	Side      string `gorm:"size:8"`
	Price     float64
	Amount    float64
	Fee       float64
	Profit    float64
	Closing   bool
}

func (TradeRow) TableName() string { return "trades" }

// BalanceRow is one equity-curve snapshot. TimeMs zero marks the initial
// ledger.
type BalanceRow struct {
	ID        uint   `gorm:"primaryKey"`
	Symbol    string `gorm:"size:32;index:idx_balance_key"`
	Timeframe string `gorm:"size:8;index:idx_balance_key"`
	TimeMs    int64  `gorm:"index:idx_balance_key"`
	Values    string `gorm:"type:jsonb"`
}

func (BalanceRow) TableName() string { return "balances" }

// Store implements the statistics archival hooks on PostgreSQL.
type Store struct {
	db     *gorm.DB
	client *conn.Client
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&LineRow{}, &IndicatorRow{}, &TradeRow{}, &BalanceRow{}); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	return &Store{db: db}, nil
}

// Open connects by DSN and migrates the schema.
func Open(dsn string) (*Store, error) {
	client, err := conn.New(conn.Option{ConnString: dsn})
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	s, err := New(client.DB())
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	s.client = client
	return s, nil
}

// Close releases the connection pool when the store opened it.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) SaveLine(symbol, timeframe string, timeMs int64, c model.Candle) error {
	row := LineRow{
		Symbol:    symbol,
		Timeframe: timeframe,
		TimeMs:    timeMs,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
	// Re-running a bar overwrites its previous values.
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "time_ms"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) SaveIndicators(symbol, timeframe string, timeMs int64, values map[string]model.IndicatorValue) error {
	if len(values) == 0 {
		return nil
	}
	buf, err := json.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "marshal indicator values")
	}
	row := IndicatorRow{Symbol: symbol, Timeframe: timeframe, TimeMs: timeMs, Values: string(buf)}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timeframe"}, {Name: "time_ms"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Store) SaveTrade(symbol, timeframe string, order model.Order, profit float64, closing bool) error {
	row := TradeRow{
		Symbol:    symbol,
		Timeframe: timeframe,
		TimeMs:    order.TimestampMs,
		Side:      order.Side.String(),
		Price:     order.Price,
		Amount:    order.Amount,
		Fee:       order.Fee,
		Profit:    profit,
		Closing:   closing,
	}
	return s.db.Create(&row).Error
}

func (s *Store) SaveBalances(symbol, timeframe string, timeMs int64, b model.Balances) error {
	buf, err := json.Marshal(b)
	if err != nil {
		return errors.Wrap(err, "marshal balances")
	}
	row := BalanceRow{Symbol: symbol, Timeframe: timeframe, TimeMs: timeMs, Values: string(buf)}
	return s.db.Create(&row).Error
}

// BuildReport reconstructs a run's statistics from the archived rows in
// [fromMs, toMs]; a zero toMs means no upper bound.
func (s *Store) BuildReport(symbol, timeframe string, fromMs, toMs int64, flatOnly bool) (model.DataStats, error) {
	span := func(q *gorm.DB) *gorm.DB {
		q = q.Where("symbol = ? AND timeframe = ?", symbol, timeframe)
		q = q.Where("time_ms >= ?", fromMs)
		if toMs > 0 {
			q = q.Where("time_ms <= ?", toMs)
		}
		return q.Order("time_ms asc, id asc")
	}

	var lineRows []LineRow
	if err := span(s.db).Find(&lineRows).Error; err != nil {
		return model.DataStats{}, errors.Wrap(err, "load lines")
	}
	var indicatorRows []IndicatorRow
	if err := span(s.db).Find(&indicatorRows).Error; err != nil {
		return model.DataStats{}, errors.Wrap(err, "load indicators")
	}
	var tradeRows []TradeRow
	if err := span(s.db).Find(&tradeRows).Error; err != nil {
		return model.DataStats{}, errors.Wrap(err, "load trades")
	}
	// The initial ledger sits at time zero regardless of the span.
	var balanceRows []BalanceRow
	q := s.db.Where("symbol = ? AND timeframe = ?", symbol, timeframe)
	if toMs > 0 {
		q = q.Where("time_ms = 0 OR (time_ms >= ? AND time_ms <= ?)", fromMs, toMs)
	} else {
		q = q.Where("time_ms = 0 OR time_ms >= ?", fromMs)
	}
	if err := q.Order("time_ms asc, id asc").Find(&balanceRows).Error; err != nil {
		return model.DataStats{}, errors.Wrap(err, "load balances")
	}

	snapshot, err := assemble(symbol, lineRows, indicatorRows, tradeRows, balanceRows)
	if err != nil {
		return model.DataStats{}, err
	}
	snapshot.FlatOnlyDrawdown = flatOnly
	return stats.BuildReport(snapshot)
}

func assemble(symbol string, lineRows []LineRow, indicatorRows []IndicatorRow, tradeRows []TradeRow, balanceRows []BalanceRow) (stats.Snapshot, error) {
	lines := make([]model.Line, 0, len(lineRows))
	byTime := make(map[int64]int, len(lineRows))
	for _, row := range lineRows {
		byTime[row.TimeMs] = len(lines)
		lines = append(lines, model.Line{
			TimeMs: row.TimeMs,
			Open:   row.Open,
			High:   row.High,
			Low:    row.Low,
			Close:  row.Close,
			Volume: row.Volume,
			Price:  row.Close,
		})
	}

	for _, row := range indicatorRows {
		i, ok := byTime[row.TimeMs]
		if !ok {
			continue
		}
		values := make(map[string]model.IndicatorValue)
		if err := json.Unmarshal([]byte(row.Values), &values); err != nil {
			return stats.Snapshot{}, errors.Wrapf(err, "indicator values at %d", row.TimeMs)
		}
		if lines[i].Overlays == nil {
			lines[i].Overlays = make(map[string]float64)
		}
		for name, v := range values {
			if v.Composite() {
				for field, fv := range v.Fields {
					lines[i].Overlays[strings.ToUpper(name)+"_"+strings.ToUpper(field)] = fv
				}
			} else {
				lines[i].Overlays[name] = v.Value
			}
		}
	}

	trades := make([]model.Trade, 0, len(tradeRows))
	var profits []float64
	fees := 0.0
	for _, row := range tradeRows {
		trades = append(trades, model.Trade{
			TimeMs: row.TimeMs,
			Price:  row.Price,
			Side:   enum.ParseSide(row.Side),
		})
		if row.Closing {
			profits = append(profits, row.Profit)
		} else {
			fees += row.Fee
		}
	}

	equity := make([]model.EquityPoint, 0, len(balanceRows))
	for _, row := range balanceRows {
		balances := make(model.Balances)
		if err := json.Unmarshal([]byte(row.Values), &balances); err != nil {
			return stats.Snapshot{}, errors.Wrapf(err, "balances at %d", row.TimeMs)
		}
		equity = append(equity, model.EquityPoint{TimeMs: row.TimeMs, Value: balances})
	}

	var initial, final model.Balances
	if len(equity) > 0 {
		initial = equity[0].Value.Clone()
		final = equity[len(equity)-1].Value.Clone()
	}

	base, quote := model.SplitSymbol(symbol)
	return stats.Snapshot{
		Initial: initial,
		Final:   final,
		Lines:   lines,
		Trades:  trades,
		Equity:  equity,
		Profits: profits,
		Fees:    fees,
		Base:    base,
		Quote:   quote,
	}, nil
}
