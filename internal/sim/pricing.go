// Package sim implements the deterministic simulated broker: an execution
// engine that matches open orders against market events, a single-writer
// ledger of cash, positions and trades, and the pricing, fee and
// buying-power capabilities the two are parameterized with.
package sim

import (
	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
)

// PriceModel computes the price an order fills at, given the price
// observation that triggered the fill. Implementations must be pure
// functions of their inputs.
type PriceModel interface {
	Price(order domain.Order, item domain.PriceItem) decimal.Decimal
}

// SpreadPriceModel models slippage proportional to the reference price:
// buys pay the reference price marked up by the spread, sells receive the
// reference price marked down. A zero spread fills at the reference price.
type SpreadPriceModel struct {
	spread decimal.Decimal // fraction, e.g. 0.001 for 10 bps
}

// NewSpreadPriceModel creates a SpreadPriceModel with the spread expressed
// in basis points.
func NewSpreadPriceModel(bps int64) SpreadPriceModel {
	return SpreadPriceModel{spread: decimal.New(bps, -4)}
}

func (m SpreadPriceModel) Price(order domain.Order, item domain.PriceItem) decimal.Decimal {
	ref := item.Price()
	slip := ref.Mul(m.spread)
	if order.IsBuy() {
		return ref.Add(slip)
	}
	return ref.Sub(slip)
}

// FixedSlippageModel models slippage as a fixed price offset per unit,
// independent of the price level.
type FixedSlippageModel struct {
	Offset decimal.Decimal
}

func (m FixedSlippageModel) Price(order domain.Order, item domain.PriceItem) decimal.Decimal {
	ref := item.Price()
	if order.IsBuy() {
		return ref.Add(m.Offset)
	}
	return ref.Sub(m.Offset)
}
