package model

import "main/internal/model/enum"

// Trade is a reporting view of one fill.
type Trade struct {
	TimeMs int64     `json:"time"`
	Price  float64   `json:"price"`
	Side   enum.Side `json:"side"`
}

// EquityPoint is one account-value snapshot on the equity curve.
type EquityPoint struct {
	TimeMs int64    `json:"time"`
	Value  Balances `json:"value"`
}

// Line is one bar of the merged report series: OHLCV enriched with trade
// markers, forward-filled equity and indicator overlays.
type Line struct {
	TimeMs   int64              `json:"time"`
	Open     float64            `json:"open"`
	High     float64            `json:"high"`
	Low      float64            `json:"low"`
	Close    float64            `json:"close"`
	Volume   float64            `json:"volume"`
	Price    float64            `json:"price"`
	Buy      bool               `json:"buy"`
	Sell     bool               `json:"sell"`
	Equity   Balances           `json:"equity"`
	Overlays map[string]float64 `json:"overlays,omitempty"`
}

// DataStats is the aggregate performance snapshot a run produces.
type DataStats struct {
	InitialBalance  Balances `json:"initialBalance"`
	FinalBalance    Balances `json:"finalBalance"`
	Fees            float64  `json:"fees"`
	WinTrades       int      `json:"winTrades"`
	LoseTrades      int      `json:"loseTrades"`
	AverageProfit   float64  `json:"averageProfit"`
	AverageLoss     float64  `json:"averageLoss"`
	RiskRewardRatio float64  `json:"riskRewardRatio"`
	ProfitFactor    float64  `json:"profitFactor"`
	WinRate         float64  `json:"winRate"`
	MaxDrawdown     float64  `json:"maxDrawdown"`
	SharpeRatio     float64  `json:"sharpeRatio"`
	Lines           []Line   `json:"lines"`
}
