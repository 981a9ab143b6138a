package stats

import (
	"math"
	"strings"

	"github.com/yanun0323/errors"

	"main/internal/indicator"
	"main/internal/model"
	"main/internal/model/enum"
)

const msPerYear = 365.25 * 24 * 60 * 60 * 1000

// Snapshot is everything needed to assemble a DataStats, whether it was
// accumulated live by a Collector or reloaded from the durable store.
type Snapshot struct {
	Initial model.Balances
	Final   model.Balances
	Lines   []model.Line
	Trades  []model.Trade
	Equity  []model.EquityPoint
	Profits []float64
	Fees    float64
	Base    string
	Quote   string

	FlatOnlyDrawdown bool
}

// Report assembles the run's DataStats, merging the given indicators'
// value sequences into the bar series as overlays. The merge works on
// copies of the collector's series, so repeated calls yield the same
// result.
func (c *Collector) Report(indicators []indicator.Indicator) (model.DataStats, error) {
	lines := make([]model.Line, len(c.lines))
	copy(lines, c.lines)
	equity := make([]model.EquityPoint, len(c.equity))
	copy(equity, c.equity)

	MergeIndicators(lines, indicators)
	return BuildReport(Snapshot{
		Initial:          c.initial,
		Final:            c.final,
		Lines:            lines,
		Trades:           c.trades,
		Equity:           equity,
		Profits:          c.profits,
		Fees:             c.fees,
		Base:             c.base,
		Quote:            c.quote,
		FlatOnlyDrawdown: c.flatOnly,
	})
}

// MergeIndicators writes each drawable indicator's values onto the line
// series: scalars keyed by name, composite values exploded into
// NAME_FIELD keys. Sequences longer than the series contribute their
// trailing slice.
func MergeIndicators(lines []model.Line, indicators []indicator.Indicator) {
	for _, ind := range indicators {
		if !ind.Drawable() {
			continue
		}
		values := ind.Values()
		if len(values) > len(lines) {
			values = values[len(values)-len(lines):]
		}
		// Values cover the most recent bars.
		offset := len(lines) - len(values)
		for i, v := range values {
			line := &lines[offset+i]
			if line.Overlays == nil {
				line.Overlays = make(map[string]float64)
			}
			mergeValue(line.Overlays, ind.Name(), v)
		}
	}
}

func mergeValue(overlays map[string]float64, name string, v model.IndicatorValue) {
	if !v.Composite() {
		overlays[name] = v.Value
		return
	}
	for field, fv := range v.Fields {
		overlays[strings.ToUpper(name)+"_"+strings.ToUpper(field)] = fv
	}
}

// BuildReport merges trade markers and forward-filled equity into the bar
// series and computes the aggregate metrics.
func BuildReport(s Snapshot) (model.DataStats, error) {
	if len(s.Lines) == 0 {
		return model.DataStats{}, errors.New("no bars recorded")
	}

	mergeTrades(s.Lines, s.Trades)
	mergeEquity(s.Lines, s.Equity)

	wins, losses := 0, 0
	grossProfit, grossLoss := 0.0, 0.0
	for _, p := range s.Profits {
		if p >= 0 {
			wins++
			grossProfit += p
		} else {
			losses++
			grossLoss += -p
		}
	}

	averageProfit := safeDiv(grossProfit, float64(wins))
	averageLoss := safeDiv(grossLoss, float64(losses))
	winRate := safeDiv(float64(wins), float64(len(s.Profits)))

	elapsedYears := float64(s.Lines[len(s.Lines)-1].TimeMs-s.Lines[0].TimeMs) / msPerYear

	return model.DataStats{
		InitialBalance:  s.Initial,
		FinalBalance:    s.Final,
		Fees:            s.Fees,
		WinTrades:       wins,
		LoseTrades:      losses,
		AverageProfit:   averageProfit,
		AverageLoss:     averageLoss,
		RiskRewardRatio: safeDiv(averageProfit, averageLoss),
		ProfitFactor:    safeDiv(grossProfit, grossLoss),
		WinRate:         winRate,
		MaxDrawdown:     maxDrawdown(s),
		SharpeRatio:     sharpe(s.Profits, elapsedYears),
		Lines:           s.Lines,
	}, nil
}

// mergeTrades marks the bar matching each trade's time key with the trade
// price and direction flag.
func mergeTrades(lines []model.Line, trades []model.Trade) {
	index := make(map[int64]int, len(lines))
	for i, line := range lines {
		if _, seen := index[line.TimeMs]; !seen {
			index[line.TimeMs] = i
		}
	}
	for _, trade := range trades {
		i, ok := index[trade.TimeMs]
		if !ok {
			continue
		}
		lines[i].Price = trade.Price
		switch trade.Side {
		case enum.SideBuy:
			lines[i].Buy = true
		case enum.SideSell:
			lines[i].Sell = true
		}
	}
}

// mergeEquity forward-fills the most recent equity snapshot at or before
// each bar's time into the bar.
func mergeEquity(lines []model.Line, equity []model.EquityPoint) {
	if len(equity) == 0 {
		return
	}
	// The seed point carries no timestamp; anchor it to the first bar.
	if equity[0].TimeMs == 0 {
		equity[0].TimeMs = lines[0].TimeMs
	}

	byTime := make(map[int64]model.Balances, len(equity))
	for _, point := range equity {
		byTime[point.TimeMs] = point.Value // latest point at a time wins
	}

	current := equity[0].Value
	for i := range lines {
		if value, ok := byTime[lines[i].TimeMs]; ok {
			current = value
		}
		lines[i].Equity = current.Clone()
	}
}

// maxDrawdown is the peak-to-trough decline of the quote equity curve as
// a percentage of the peak. The flat-only policy keeps only points where
// the base balance equals its initial value.
func maxDrawdown(s Snapshot) float64 {
	points := s.Equity
	if s.FlatOnlyDrawdown {
		initialBase := s.Initial.Get(s.Base)
		filtered := make([]model.EquityPoint, 0, len(points))
		for _, p := range points {
			if p.Value.Get(s.Base).Equal(initialBase) {
				filtered = append(filtered, p)
			}
		}
		points = filtered
	}
	if len(points) == 0 {
		return 0
	}

	peak := quoteOf(points[0], s.Quote)
	maxDD := 0.0
	for _, p := range points {
		v := quoteOf(p, s.Quote)
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

func quoteOf(p model.EquityPoint, quote string) float64 {
	v, _ := p.Value.Get(quote).Float64()
	return v
}

// sharpe annualizes the per-round-trip profit distribution by the real
// elapsed span of the bar series.
func sharpe(profits []float64, elapsedYears float64) float64 {
	if len(profits) < 2 || elapsedYears <= 0 {
		return 0
	}

	mean := 0.0
	for _, p := range profits {
		mean += p
	}
	mean /= float64(len(profits))

	variance := 0.0
	for _, p := range profits {
		variance += (p - mean) * (p - mean)
	}
	std := math.Sqrt(variance / float64(len(profits)-1))
	if std == 0 {
		return 0
	}

	tradesPerYear := float64(len(profits)) / elapsedYears
	return mean / std * math.Sqrt(tradesPerYear)
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
