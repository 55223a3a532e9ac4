package sim

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
)

// ledger is the single mutable account state behind a Broker. All mutation
// funnels through the broker's operations; external readers only ever see
// the defensive copies produced by snapshot.
type ledger struct {
	baseCurrency string
	cash         map[string]decimal.Decimal
	positions    map[domain.Asset]domain.Position
	orders       map[string]domain.OrderState
	orderIDs     []string // placement order, for stable snapshots
	trades       []domain.Trade
	buyingPower  decimal.Decimal
	lastUpdate   time.Time
}

func newLedger(baseCurrency string) *ledger {
	return &ledger{
		baseCurrency: baseCurrency,
		cash:         make(map[string]decimal.Decimal),
		positions:    make(map[domain.Asset]domain.Position),
		orders:       make(map[string]domain.OrderState),
	}
}

// deposit adds cash in the given currency.
func (l *ledger) deposit(currency string, amount decimal.Decimal) {
	l.cash[currency] = l.cash[currency].Add(amount)
}

// apply absorbs one execution: merge the fill into the asset's position,
// record the trade, and withdraw the execution's notional value plus fee
// from cash in the asset's currency.
func (l *ledger) apply(exec domain.Execution, fee decimal.Decimal) domain.Trade {
	asset := exec.Order.Asset()

	pos := l.positions[asset]
	pos.Asset = asset
	pos, realized := pos.Merge(exec.Size, exec.Price)
	pos.SpotPrice = exec.Price
	pos.LastUpdate = exec.Time
	if pos.Closed() {
		delete(l.positions, asset)
	} else {
		l.positions[asset] = pos
	}

	trade := domain.Trade{
		Time:    exec.Time,
		Asset:   asset,
		Size:    exec.Size,
		Price:   exec.Price,
		Fee:     fee,
		PNL:     realized.Sub(fee),
		OrderID: exec.OrderID,
	}
	l.trades = append(l.trades, trade)

	l.cash[asset.Currency] = l.cash[asset.Currency].Sub(exec.Notional()).Sub(fee)
	return trade
}

// updateOrders merges order states by id, preserving first-seen placement
// order.
func (l *ledger) updateOrders(states []domain.OrderState) {
	for _, s := range states {
		if _, seen := l.orders[s.ID]; !seen {
			l.orderIDs = append(l.orderIDs, s.ID)
		}
		l.orders[s.ID] = s
	}
}

// markToMarket refreshes the spot price of every held position that the
// event carries an observation for.
func (l *ledger) markToMarket(event domain.Event) {
	for asset, pos := range l.positions {
		if price, ok := event.Price(asset); ok {
			pos.SpotPrice = price
			pos.LastUpdate = event.Time
			l.positions[asset] = pos
		}
	}
}

// snapshot returns a deep copy of the ledger as an immutable account view.
func (l *ledger) snapshot() *domain.Account {
	cash := make(map[string]decimal.Decimal, len(l.cash))
	for c, v := range l.cash {
		cash[c] = v
	}
	positions := make(map[domain.Asset]domain.Position, len(l.positions))
	for a, p := range l.positions {
		positions[a] = p
	}
	orders := make([]domain.OrderState, 0, len(l.orderIDs))
	for _, id := range l.orderIDs {
		orders = append(orders, l.orders[id])
	}
	trades := make([]domain.Trade, len(l.trades))
	copy(trades, l.trades)

	return &domain.Account{
		BaseCurrency: l.baseCurrency,
		Cash:         cash,
		Positions:    positions,
		Orders:       orders,
		Trades:       trades,
		BuyingPower:  l.buyingPower,
		LastUpdate:   l.lastUpdate,
	}
}
