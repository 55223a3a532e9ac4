// Package domain defines the core types of the simulation engine: assets,
// instructions and their order variants, the order lifecycle state machine,
// positions, executions, trades, market events, and account snapshots.
package domain

import "fmt"

// Asset identifies a tradable instrument and the currency it settles in.
type Asset struct {
	Symbol   string
	Currency string
}

// NewAsset creates an Asset for the given symbol settling in currency.
func NewAsset(symbol, currency string) Asset {
	return Asset{Symbol: symbol, Currency: currency}
}

// USD is a convenience constructor for US-dollar-denominated assets.
func USD(symbol string) Asset {
	return Asset{Symbol: symbol, Currency: "USD"}
}

func (a Asset) String() string {
	return fmt.Sprintf("%s/%s", a.Symbol, a.Currency)
}
