package sim

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
)

// entry is one order in the engine's working set, together with the
// bookkeeping the matching rules need between events.
type entry struct {
	state     domain.OrderState
	remaining decimal.Decimal
	triggered bool            // stop-limit: stop leg has been crossed
	hasBest   bool            // trailing: best price initialized
	best      decimal.Decimal // trailing: best price seen since acceptance
	waiting   bool            // bracket child: dormant until the entry fills
	children  []string        // bracket entry: child order ids
	sibling   string          // bracket child: id cancelled when this fills
}

// Engine owns the open-order working set. For each incoming event it decides
// which orders fill, at what quantity and price, and advances order
// lifecycle state. Orders are evaluated in placement order and the engine
// never consults the wall clock, so the same working set and event always
// produce the same executions.
type Engine struct {
	entries []*entry
	index   map[string]*entry
	pricing PriceModel
	maxAge  time.Duration
	nextID  int64
}

// NewEngine creates an empty engine using the given price model for fills.
// Orders older than maxAge expire; Day orders additionally expire at the
// first event of a later calendar day.
func NewEngine(pricing PriceModel, maxAge time.Duration) *Engine {
	return &Engine{
		index:   make(map[string]*entry),
		pricing: pricing,
		maxAge:  maxAge,
	}
}

func (e *Engine) newID() string {
	e.nextID++
	return strconv.FormatInt(e.nextID, 10)
}

// Has reports whether the engine tracks an order with the given id.
func (e *Engine) Has(id string) bool {
	_, ok := e.index[id]
	return ok
}

func (e *Engine) add(en *entry) {
	e.entries = append(e.entries, en)
	e.index[en.state.ID] = en
}

// Register accepts an order into the working set at time t and returns the
// resulting states. A bracket order produces three states: the accepted
// entry leg plus its two children, which stay in the initial status until
// the entry fills.
func (e *Engine) Register(order domain.Order, t time.Time) []domain.OrderState {
	if b, ok := order.(*domain.BracketOrder); ok {
		return e.registerBracket(b, t)
	}

	en := &entry{
		state:     domain.NewOrderState(e.newID(), order).Transition(t, domain.Accepted),
		remaining: order.Size(),
	}
	e.add(en)
	return []domain.OrderState{en.state}
}

func (e *Engine) registerBracket(b *domain.BracketOrder, t time.Time) []domain.OrderState {
	ent := &entry{
		state:     domain.NewOrderState(e.newID(), b.Entry).Transition(t, domain.Accepted),
		remaining: b.Entry.Size(),
	}
	tp := &entry{
		state:     domain.NewOrderState(e.newID(), b.TakeProfit),
		remaining: b.TakeProfit.Size(),
		waiting:   true,
	}
	sl := &entry{
		state:     domain.NewOrderState(e.newID(), b.StopLoss),
		remaining: b.StopLoss.Size(),
		waiting:   true,
	}
	ent.children = []string{tp.state.ID, sl.state.ID}
	tp.sibling = sl.state.ID
	sl.sibling = tp.state.ID

	e.add(ent)
	e.add(tp)
	e.add(sl)
	return []domain.OrderState{ent.state, tp.state, sl.state}
}

// Reject assigns an id to an order that failed broker-side validation and
// returns its terminal state. The order never enters the working set.
func (e *Engine) Reject(order domain.Order, t time.Time) domain.OrderState {
	return domain.NewOrderState(e.newID(), order).Transition(t, domain.Rejected)
}

// Cancel moves the order with the given id to the cancelled status. The
// children of a cancelled bracket entry are cancelled with it. Cancelling an
// already closed order is a no-op.
func (e *Engine) Cancel(id string, t time.Time) domain.OrderState {
	en, ok := e.index[id]
	if !ok {
		return domain.OrderState{}
	}
	if !en.state.Status.Open() {
		return en.state
	}
	e.close(en, t, domain.Cancelled)
	return en.state
}

// close moves an entry to a terminal status and cascades onto any dormant or
// open children.
func (e *Engine) close(en *entry, t time.Time, status domain.OrderStatus) {
	en.state = en.state.Transition(t, status)
	for _, id := range en.children {
		if child, ok := e.index[id]; ok && child.state.Status.Open() {
			child.state = child.state.Transition(t, domain.Cancelled)
		}
	}
}

// Match evaluates every open order against the event and returns the
// executions it produces, in placement order.
func (e *Engine) Match(event domain.Event) []domain.Execution {
	var execs []domain.Execution
	for _, en := range e.entries {
		if !en.state.Status.Open() || en.waiting {
			continue
		}

		if e.expired(en, event.Time) {
			e.close(en, event.Time, domain.Expired)
			continue
		}

		item, ok := event.Prices[en.state.Order.Asset()]
		if !ok {
			continue
		}

		price, filled := e.tryFill(en, item)
		if !filled {
			continue
		}

		execs = append(execs, domain.Execution{
			OrderID: en.state.ID,
			Order:   en.state.Order,
			Size:    en.remaining,
			Price:   price,
			Time:    event.Time,
		})
		en.remaining = decimal.Zero
		en.state = en.state.Transition(event.Time, domain.Completed)

		// Entry leg of a bracket: wake the children.
		for _, id := range en.children {
			if child, ok := e.index[id]; ok && child.waiting {
				child.waiting = false
				child.state = child.state.Transition(event.Time, domain.Accepted)
			}
		}
		// Child leg of a bracket: the sibling dies with this fill.
		if en.sibling != "" {
			if sib, ok := e.index[en.sibling]; ok && sib.state.Status.Open() {
				sib.state = sib.state.Transition(event.Time, domain.Cancelled)
			}
		}
	}
	return execs
}

// expired reports whether an accepted order has outlived its time in force.
func (e *Engine) expired(en *entry, now time.Time) bool {
	opened := en.state.OpenedAt
	if opened.IsZero() {
		return false
	}
	if en.state.Order.TIF() == domain.Day {
		oy, om, od := opened.UTC().Date()
		ny, nm, nd := now.UTC().Date()
		return oy != ny || om != nm || od != nd
	}
	return e.maxAge > 0 && now.Sub(opened) > e.maxAge
}

// tryFill applies the matching rule for the order's variant against one
// price observation. It returns the fill price when the order fills.
func (e *Engine) tryFill(en *entry, item domain.PriceItem) (decimal.Decimal, bool) {
	o := en.state.Order
	switch o := o.(type) {
	case *domain.MarketOrder:
		return e.pricing.Price(o, item), true

	case *domain.LimitOrder:
		if !limitCrossed(o.IsBuy(), o.Limit, item) {
			return decimal.Zero, false
		}
		return capAtLimit(o.IsBuy(), o.Limit, e.pricing.Price(o, item)), true

	case *domain.StopOrder:
		if !stopCrossed(o.IsBuy(), o.Stop, item) {
			return decimal.Zero, false
		}
		return e.pricing.Price(o, item), true

	case *domain.StopLimitOrder:
		if !en.triggered && stopCrossed(o.IsBuy(), o.Stop, item) {
			en.triggered = true
		}
		if !en.triggered || !limitCrossed(o.IsBuy(), o.Limit, item) {
			return decimal.Zero, false
		}
		return capAtLimit(o.IsBuy(), o.Limit, e.pricing.Price(o, item)), true

	case *domain.TrailingOrder:
		stop, armed := e.trail(en, o, item)
		if !armed || !stopCrossed(o.IsBuy(), stop, item) {
			return decimal.Zero, false
		}
		return e.pricing.Price(o, item), true
	}
	return decimal.Zero, false
}

// trail ratchets the trailing order's best price from the observation and
// returns the current stop level.
func (e *Engine) trail(en *entry, o *domain.TrailingOrder, item domain.PriceItem) (decimal.Decimal, bool) {
	one := decimal.New(1, 0)
	if o.IsSell() {
		// Protects a long: trail below the highest price seen.
		if high := item.HighPrice(); !en.hasBest || high.GreaterThan(en.best) {
			en.best = high
			en.hasBest = true
		}
		return en.best.Mul(one.Sub(o.TrailPct)), en.hasBest
	}
	// Protects a short: trail above the lowest price seen.
	if low := item.LowPrice(); !en.hasBest || low.LessThan(en.best) {
		en.best = low
		en.hasBest = true
	}
	return en.best.Mul(one.Add(o.TrailPct)), en.hasBest
}

// limitCrossed reports whether the observation traded through the limit.
func limitCrossed(isBuy bool, limit decimal.Decimal, item domain.PriceItem) bool {
	if isBuy {
		return item.LowPrice().LessThanOrEqual(limit)
	}
	return item.HighPrice().GreaterThanOrEqual(limit)
}

// stopCrossed reports whether the observation traded through the stop.
func stopCrossed(isBuy bool, stop decimal.Decimal, item domain.PriceItem) bool {
	if isBuy {
		return item.HighPrice().GreaterThanOrEqual(stop)
	}
	return item.LowPrice().LessThanOrEqual(stop)
}

// capAtLimit keeps a model-quoted fill price within the order's limit: a buy
// never pays more than the limit, a sell never receives less.
func capAtLimit(isBuy bool, limit, price decimal.Decimal) decimal.Decimal {
	if isBuy {
		return decimal.Min(price, limit)
	}
	return decimal.Max(price, limit)
}

// States returns the current state of every tracked order, in placement
// order.
func (e *Engine) States() []domain.OrderState {
	states := make([]domain.OrderState, 0, len(e.entries))
	for _, en := range e.entries {
		states = append(states, en.state)
	}
	return states
}

// OpenStates returns the states of orders that are still open.
func (e *Engine) OpenStates() []domain.OrderState {
	var open []domain.OrderState
	for _, en := range e.entries {
		if en.state.Status.Open() {
			open = append(open, en.state)
		}
	}
	return open
}

// Purge drops terminal orders from the working set. Called after the ledger
// has absorbed their final state.
func (e *Engine) Purge() {
	kept := e.entries[:0]
	for _, en := range e.entries {
		if en.state.Status.Open() {
			kept = append(kept, en)
		} else {
			delete(e.index, en.state.ID)
		}
	}
	e.entries = kept
}

// Reset clears the working set. Assigned ids are not reused.
func (e *Engine) Reset() {
	e.entries = nil
	e.index = make(map[string]*entry)
}
