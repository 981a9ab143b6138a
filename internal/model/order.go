package model

import "main/internal/model/enum"

// Order is the broker's record of an executed fill. Fee is computed at
// execution time and deducted from the quote balance.
type Order struct {
	Side        enum.Side `json:"side"`
	Symbol      string    `json:"symbol"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	Cost        float64   `json:"cost"`
	TimestampMs int64     `json:"timestamp"`
	Fee         float64   `json:"fee,omitempty"`
}

// Position tracks net exposure for one base symbol. Size is signed:
// positive is long, negative is short. Size zero means the position record
// should be removed.
type Position struct {
	Symbol     string  `json:"symbol"`
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entryPrice"`
}
