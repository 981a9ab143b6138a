package model

// Bus event catalog. Producers and consumers agree on these names and the
// payload types below by convention; the bus itself validates nothing.
const (
	TopicCandle              = "candle"
	TopicPrice               = "price"
	TopicCandleIndicator     = "candle:indicator"
	TopicSignalBuy           = "signal:buy"
	TopicSignalSell          = "signal:sell"
	TopicOrderFilled         = "order:filled"
	TopicPositionClosed      = "position:closed"
	TopicBalanceInit         = "balance:init"
	TopicBalanceUpdate       = "balance:update"
	TopicBalanceInsufficient = "balance:insufficient"
)

// PriceTick is published whenever the observed close price changes, which
// can be finer than bar boundaries.
type PriceTick struct {
	Price       float64 `json:"price"`
	TimestampMs int64   `json:"timestamp"`
}

// SignalRequest asks the broker to execute a buy or sell. The timestamp is
// floor-aligned to the active bar boundary before publishing.
type SignalRequest struct {
	Price       float64 `json:"price"`
	Amount      float64 `json:"amount"`
	TimestampMs int64   `json:"timestamp"`
}

// BalanceUpdate carries a snapshot of the broker ledger after a fill.
type BalanceUpdate struct {
	TimestampMs int64    `json:"timestamp"`
	Balances    Balances `json:"balances"`
}

// InsufficientBalance is published instead of a trade signal when the
// pre-check fails.
type InsufficientBalance struct {
	Symbol string `json:"symbol"`
}

// CandleIndicator is a bar merged with every indicator value computed on
// it, for statistics consumption.
type CandleIndicator struct {
	Kline      KlineData                 `json:"kline"`
	Indicators map[string]IndicatorValue `json:"indicators"`
}
