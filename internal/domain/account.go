package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is an immutable point-in-time snapshot of a broker account: cash
// per currency, open positions, order states, the full trade history, and
// the buying power computed after the last update. Brokers hand out fresh
// copies; consumers must treat a snapshot as read-only.
type Account struct {
	BaseCurrency string
	Cash         map[string]decimal.Decimal
	Positions    map[Asset]Position
	Orders       []OrderState
	Trades       []Trade
	BuyingPower  decimal.Decimal
	LastUpdate   time.Time
}

// CashBalance returns the cash held in the given currency.
func (a *Account) CashBalance(currency string) decimal.Decimal {
	return a.Cash[currency]
}

// TotalCash returns the sum of all cash balances. Currencies are summed at
// par; FX conversion is out of scope for the simulation.
func (a *Account) TotalCash() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range a.Cash {
		total = total.Add(amount)
	}
	return total
}

// MarketValue returns the signed market value of all open positions.
func (a *Account) MarketValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.Positions {
		total = total.Add(p.MarketValue())
	}
	return total
}

// UnrealizedPNL returns the unrealized profit or loss of all open positions.
func (a *Account) UnrealizedPNL() decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.Positions {
		total = total.Add(p.UnrealizedPNL())
	}
	return total
}

// Equity returns total cash plus the market value of open positions.
func (a *Account) Equity() decimal.Decimal {
	return a.TotalCash().Add(a.MarketValue())
}

// OpenOrders returns the order states that are still open, in placement
// order.
func (a *Account) OpenOrders() []OrderState {
	var open []OrderState
	for _, s := range a.Orders {
		if s.Status.Open() {
			open = append(open, s)
		}
	}
	return open
}

// OrderState returns the state of the order with the given id.
func (a *Account) OrderState(id string) (OrderState, bool) {
	for _, s := range a.Orders {
		if s.ID == id {
			return s, true
		}
	}
	return OrderState{}, false
}
