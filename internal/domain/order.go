package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeInForce governs how long an order stays open before it expires.
type TimeInForce int

const (
	// GTC keeps the order open until filled, cancelled, or a maximum age is
	// reached.
	GTC TimeInForce = iota

	// Day keeps the order open only for the calendar day it was accepted on.
	Day
)

func (t TimeInForce) String() string {
	if t == Day {
		return "DAY"
	}
	return "GTC"
}

// Instruction is what the policy layer hands to a broker: either an Order to
// create or a Cancellation of an existing order. The set of variants is
// closed; brokers dispatch over it exhaustively and reject anything else.
type Instruction interface {
	instruction()
}

// Order is the common surface of all order variants. Size is signed: positive
// buys, negative sells.
type Order interface {
	Instruction
	Asset() Asset
	Size() decimal.Decimal
	TIF() TimeInForce
	IsBuy() bool
	IsSell() bool
}

// base carries the fields shared by every order variant.
type base struct {
	asset Asset
	size  decimal.Decimal
	tif   TimeInForce
}

func (base) instruction() {}

func (b *base) Asset() Asset           { return b.asset }
func (b *base) Size() decimal.Decimal  { return b.size }
func (b *base) TIF() TimeInForce       { return b.tif }
func (b *base) IsBuy() bool            { return b.size.Sign() > 0 }
func (b *base) IsSell() bool           { return b.size.Sign() < 0 }
func (b *base) SetTIF(tif TimeInForce) { b.tif = tif }

// MarketOrder fills its full remaining size at the next available price.
type MarketOrder struct {
	base
}

// NewMarketOrder creates a market order. A positive size buys, a negative
// size sells.
func NewMarketOrder(asset Asset, size decimal.Decimal) *MarketOrder {
	return &MarketOrder{base{asset: asset, size: size}}
}

// LimitOrder fills only when the market trades through its limit price.
type LimitOrder struct {
	base
	Limit decimal.Decimal
}

// NewLimitOrder creates a limit order with the given limit price.
func NewLimitOrder(asset Asset, size, limit decimal.Decimal) *LimitOrder {
	return &LimitOrder{base: base{asset: asset, size: size}, Limit: limit}
}

// StopOrder becomes a market order once the market trades through its stop
// price.
type StopOrder struct {
	base
	Stop decimal.Decimal
}

// NewStopOrder creates a stop order with the given stop price.
func NewStopOrder(asset Asset, size, stop decimal.Decimal) *StopOrder {
	return &StopOrder{base: base{asset: asset, size: size}, Stop: stop}
}

// StopLimitOrder becomes a limit order once the market trades through its
// stop price.
type StopLimitOrder struct {
	base
	Stop  decimal.Decimal
	Limit decimal.Decimal
}

// NewStopLimitOrder creates a stop-limit order.
func NewStopLimitOrder(asset Asset, size, stop, limit decimal.Decimal) *StopLimitOrder {
	return &StopLimitOrder{base: base{asset: asset, size: size}, Stop: stop, Limit: limit}
}

// TrailingOrder is a stop order whose stop price trails the best price seen
// since acceptance by a fixed percentage.
type TrailingOrder struct {
	base
	// TrailPct is the trailing distance as a fraction, e.g. 0.05 for 5%.
	TrailPct decimal.Decimal
}

// NewTrailingOrder creates a trailing stop order.
func NewTrailingOrder(asset Asset, size, trailPct decimal.Decimal) *TrailingOrder {
	return &TrailingOrder{base: base{asset: asset, size: size}, TrailPct: trailPct}
}

// BracketOrder is an entry order plus two child orders, a take-profit and a
// stop-loss, sized opposite to the entry. The children become active once the
// entry fills; a fill on either child cancels the other.
type BracketOrder struct {
	Entry      Order
	TakeProfit Order
	StopLoss   Order
}

// NewBracketOrder creates a bracket order from its three legs.
func NewBracketOrder(entry, takeProfit, stopLoss Order) *BracketOrder {
	return &BracketOrder{Entry: entry, TakeProfit: takeProfit, StopLoss: stopLoss}
}

func (*BracketOrder) instruction() {}

func (o *BracketOrder) Asset() Asset          { return o.Entry.Asset() }
func (o *BracketOrder) Size() decimal.Decimal { return o.Entry.Size() }
func (o *BracketOrder) TIF() TimeInForce      { return o.Entry.TIF() }
func (o *BracketOrder) IsBuy() bool           { return o.Entry.IsBuy() }
func (o *BracketOrder) IsSell() bool          { return o.Entry.IsSell() }

// Cancellation asks the broker to cancel the open order with the given id.
type Cancellation struct {
	ID string
}

// NewCancellation creates a cancellation for the order with the given id.
func NewCancellation(id string) *Cancellation {
	return &Cancellation{ID: id}
}

func (*Cancellation) instruction() {}

// Execution is one fill produced by the execution engine, consumed exactly
// once by the ledger update step.
type Execution struct {
	OrderID string
	Order   Order
	Size    decimal.Decimal
	Price   decimal.Decimal
	Time    time.Time
}

// Notional returns the signed cash value of the execution, size times price.
func (e Execution) Notional() decimal.Decimal {
	return e.Size.Mul(e.Price)
}
