package ui

import "github.com/solkunai/LetsCook-APP-sub002/internal/quote"

// SnapshotMsg carries a freshly loaded snapshot.
type SnapshotMsg struct {
	Snapshot *quote.Snapshot
}

// BuyQuoteMsg carries the result of a buy quote request.
type BuyQuoteMsg struct {
	Quote *quote.BuyQuote
}

// SellQuoteMsg carries the result of a sell quote request.
type SellQuoteMsg struct {
	Quote *quote.SellQuote
}

// ErrorMsg represents a failed request
type ErrorMsg struct {
	Err error
}
