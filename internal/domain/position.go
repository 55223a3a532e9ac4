package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the net holding of one asset: a signed size, the average cost
// price of the open quantity, and the most recent spot price.
type Position struct {
	Asset      Asset
	Size       decimal.Decimal
	AvgPrice   decimal.Decimal
	SpotPrice  decimal.Decimal
	LastUpdate time.Time
}

// Long reports whether the position holds a positive quantity.
func (p Position) Long() bool { return p.Size.Sign() > 0 }

// Short reports whether the position holds a negative quantity.
func (p Position) Short() bool { return p.Size.Sign() < 0 }

// Closed reports whether the position holds nothing. A closed position is
// removed from the account rather than kept at size zero.
func (p Position) Closed() bool { return p.Size.IsZero() }

// MarketValue returns the signed value of the position at the last spot
// price.
func (p Position) MarketValue() decimal.Decimal {
	return p.Size.Mul(p.SpotPrice)
}

// Exposure returns the absolute value of the position at the last spot
// price.
func (p Position) Exposure() decimal.Decimal {
	return p.MarketValue().Abs()
}

// UnrealizedPNL returns the profit or loss of the open quantity against its
// average cost price.
func (p Position) UnrealizedPNL() decimal.Decimal {
	return p.Size.Mul(p.SpotPrice.Sub(p.AvgPrice))
}

// Merge absorbs a fill of size units at price into the position and returns
// the updated position together with the PnL realized by the fill.
//
// A fill on the same side blends the average cost price by size weighting and
// realizes nothing. A fill on the opposite side realizes PnL on the closed
// quantity; if the fill flips the position through zero, the surplus opens a
// new holding at the fill price. A merge that lands exactly on zero leaves a
// closed position for the caller to remove.
func (p Position) Merge(size, price decimal.Decimal) (Position, decimal.Decimal) {
	switch {
	case p.Size.IsZero():
		p.Size = size
		p.AvgPrice = price
		return p, decimal.Zero

	case p.Size.Sign() == size.Sign():
		total := p.Size.Add(size)
		p.AvgPrice = p.Size.Mul(p.AvgPrice).Add(size.Mul(price)).Div(total)
		p.Size = total
		return p, decimal.Zero

	default:
		closed := decimal.Min(size.Abs(), p.Size.Abs())
		sign := decimal.NewFromInt(int64(p.Size.Sign()))
		realized := closed.Mul(price.Sub(p.AvgPrice)).Mul(sign)

		remaining := p.Size.Add(size)
		p.Size = remaining
		if remaining.IsZero() {
			p.AvgPrice = decimal.Zero
		} else if remaining.Sign() == size.Sign() {
			// Flipped through zero: the surplus is a fresh holding.
			p.AvgPrice = price
		}
		return p, realized
	}
}

// Trade is the append-only record of one execution's economic effect. PNL is
// the realized PnL net of the fee; the fee itself is also withdrawn from
// cash.
type Trade struct {
	Time    time.Time
	Asset   Asset
	Size    decimal.Decimal
	Price   decimal.Decimal
	Fee     decimal.Decimal
	PNL     decimal.Decimal
	OrderID string
}
