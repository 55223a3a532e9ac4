package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceItem is a single price observation for one asset. For a spot
// observation the reference, low and high prices coincide; for a bar they
// bound the range traded during the bar's interval.
type PriceItem interface {
	// Price returns the reference price used for fills and mark-to-market.
	Price() decimal.Decimal

	// LowPrice returns the lowest price seen during the observation.
	LowPrice() decimal.Decimal

	// HighPrice returns the highest price seen during the observation.
	HighPrice() decimal.Decimal
}

// TradePrice is a single spot price observation.
type TradePrice struct {
	Spot decimal.Decimal
}

func (p TradePrice) Price() decimal.Decimal     { return p.Spot }
func (p TradePrice) LowPrice() decimal.Decimal  { return p.Spot }
func (p TradePrice) HighPrice() decimal.Decimal { return p.Spot }

// BarPrice is an OHLCV price observation. The open is used as the reference
// price: in a bar-driven replay the open is the first price reachable after
// the event is delivered.
type BarPrice struct {
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

func (p BarPrice) Price() decimal.Decimal     { return p.Open }
func (p BarPrice) LowPrice() decimal.Decimal  { return p.Low }
func (p BarPrice) HighPrice() decimal.Decimal { return p.High }

// Event is one step of market data: a timestamp plus zero or more price
// observations keyed by asset. Feeds deliver events in non-decreasing time
// order.
type Event struct {
	Time   time.Time
	Prices map[Asset]PriceItem
}

// NewEvent creates an event at time t with the given price observations.
func NewEvent(t time.Time, prices map[Asset]PriceItem) Event {
	if prices == nil {
		prices = make(map[Asset]PriceItem)
	}
	return Event{Time: t, Prices: prices}
}

// Price returns the reference price for the asset, if the event contains an
// observation for it.
func (e Event) Price(asset Asset) (decimal.Decimal, bool) {
	item, ok := e.Prices[asset]
	if !ok {
		return decimal.Decimal{}, false
	}
	return item.Price(), true
}
