package sim

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
)

var (
	aapl = domain.NewAsset("AAPL", "USD")
	day0 = time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)
)

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func spotEvent(t time.Time, price string) domain.Event {
	return domain.NewEvent(t, map[domain.Asset]domain.PriceItem{
		aapl: domain.TradePrice{Spot: dec(price)},
	})
}

func barEvent(t time.Time, open, high, low, close string) domain.Event {
	return domain.NewEvent(t, map[domain.Asset]domain.PriceItem{
		aapl: domain.BarPrice{Open: dec(open), High: dec(high), Low: dec(low), Close: dec(close)},
	})
}

func newTestEngine() *Engine {
	return NewEngine(NewSpreadPriceModel(0), 90*24*time.Hour)
}

func TestEngineMarketOrderFills(t *testing.T) {
	e := newTestEngine()
	states := e.Register(domain.NewMarketOrder(aapl, dec("10")), day0)
	if len(states) != 1 || states[0].Status != domain.Accepted {
		t.Fatalf("register = %+v, want one accepted state", states)
	}

	execs := e.Match(spotEvent(day0, "150"))
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want 1", len(execs))
	}
	exec := execs[0]
	if !exec.Size.Equal(dec("10")) || !exec.Price.Equal(dec("150")) {
		t.Errorf("execution = %s @ %s, want 10 @ 150", exec.Size, exec.Price)
	}
	if got := e.States()[0].Status; got != domain.Completed {
		t.Errorf("status after fill = %s, want COMPLETED", got)
	}
}

func TestEngineMarketOrderWaitsForPrice(t *testing.T) {
	e := newTestEngine()
	e.Register(domain.NewMarketOrder(aapl, dec("10")), day0)

	// An event without an observation for the asset produces nothing.
	other := domain.NewEvent(day0, map[domain.Asset]domain.PriceItem{
		domain.NewAsset("MSFT", "USD"): domain.TradePrice{Spot: dec("400")},
	})
	if execs := e.Match(other); len(execs) != 0 {
		t.Fatalf("got %d executions without an observation, want 0", len(execs))
	}
	if got := e.States()[0].Status; got != domain.Accepted {
		t.Errorf("status = %s, want ACCEPTED while waiting", got)
	}

	if execs := e.Match(spotEvent(day0.Add(time.Minute), "150")); len(execs) != 1 {
		t.Fatalf("got %d executions on the next observation, want 1", len(execs))
	}
}

func TestEngineBuyLimit(t *testing.T) {
	e := newTestEngine()
	e.Register(domain.NewLimitOrder(aapl, dec("10"), dec("148")), day0)

	if execs := e.Match(spotEvent(day0, "150")); len(execs) != 0 {
		t.Fatal("buy limit 148 must not fill at 150")
	}

	// The bar's low crosses the limit; the fill is capped at the limit even
	// though the reference price (the open) is above it.
	execs := e.Match(barEvent(day0.Add(time.Minute), "149", "151", "147", "150"))
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want 1", len(execs))
	}
	if !execs[0].Price.Equal(dec("148")) {
		t.Errorf("fill price = %s, want capped at limit 148", execs[0].Price)
	}
}

func TestEngineSellLimit(t *testing.T) {
	e := newTestEngine()
	e.Register(domain.NewLimitOrder(aapl, dec("-10"), dec("152")), day0)

	if execs := e.Match(spotEvent(day0, "150")); len(execs) != 0 {
		t.Fatal("sell limit 152 must not fill at 150")
	}
	execs := e.Match(spotEvent(day0.Add(time.Minute), "153"))
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want 1", len(execs))
	}
	if !execs[0].Price.Equal(dec("153")) {
		t.Errorf("fill price = %s, want the reference 153 (above the limit)", execs[0].Price)
	}
}

func TestEngineStopOrder(t *testing.T) {
	e := newTestEngine()
	// Sell stop at 145 protects a long.
	e.Register(domain.NewStopOrder(aapl, dec("-10"), dec("145")), day0)

	if execs := e.Match(spotEvent(day0, "150")); len(execs) != 0 {
		t.Fatal("sell stop 145 must not trigger at 150")
	}
	execs := e.Match(spotEvent(day0.Add(time.Minute), "144"))
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want 1", len(execs))
	}
	if !execs[0].Price.Equal(dec("144")) {
		t.Errorf("fill price = %s, want 144", execs[0].Price)
	}
}

// A stop-limit is two-phase: the stop arms on one event and the limit can
// fill on a later one.
func TestEngineStopLimitTwoPhase(t *testing.T) {
	e := newTestEngine()
	// Sell: stop 145, limit 144.
	e.Register(domain.NewStopLimitOrder(aapl, dec("-10"), dec("145"), dec("144")), day0)

	// Gap straight through the stop to 140: the stop arms, but a sell at the
	// reference 140 would violate the 144 limit floor only if uncapped; the
	// limit is not crossed upward at 140, so no fill.
	if execs := e.Match(spotEvent(day0, "140")); len(execs) != 0 {
		t.Fatal("stop-limit must not fill below its limit")
	}

	// Price recovers above the limit: the already-armed limit leg fills.
	execs := e.Match(spotEvent(day0.Add(time.Minute), "146"))
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want 1", len(execs))
	}
	if !execs[0].Price.Equal(dec("146")) {
		t.Errorf("fill price = %s, want 146", execs[0].Price)
	}
}

func TestEngineTrailingOrderRatchets(t *testing.T) {
	e := newTestEngine()
	// Sell trailing 5% protects a long.
	e.Register(domain.NewTrailingOrder(aapl, dec("-10"), dec("0.05")), day0)

	// Best 100 -> stop 95. No trigger at 100.
	if execs := e.Match(spotEvent(day0, "100")); len(execs) != 0 {
		t.Fatal("must not trigger at the initial best")
	}
	// Best ratchets to 120 -> stop 114.
	if execs := e.Match(spotEvent(day0.Add(time.Minute), "120")); len(execs) != 0 {
		t.Fatal("must not trigger while making new highs")
	}
	// 115 is above the ratcheted stop 114.
	if execs := e.Match(spotEvent(day0.Add(2*time.Minute), "115")); len(execs) != 0 {
		t.Fatal("must not trigger above the stop")
	}
	// 113 crosses the stop 114.
	execs := e.Match(spotEvent(day0.Add(3*time.Minute), "113"))
	if len(execs) != 1 {
		t.Fatalf("got %d executions, want trigger below 114", len(execs))
	}
	if !execs[0].Price.Equal(dec("113")) {
		t.Errorf("fill price = %s, want 113", execs[0].Price)
	}
}

func TestEngineBracketLifecycle(t *testing.T) {
	e := newTestEngine()
	b := domain.NewBracketOrder(
		domain.NewMarketOrder(aapl, dec("10")),
		domain.NewLimitOrder(aapl, dec("-10"), dec("170")),
		domain.NewStopOrder(aapl, dec("-10"), dec("140")),
	)
	states := e.Register(b, day0)
	if len(states) != 3 {
		t.Fatalf("bracket registered %d states, want 3", len(states))
	}
	if states[0].Status != domain.Accepted {
		t.Errorf("entry status = %s, want ACCEPTED", states[0].Status)
	}
	if states[1].Status != domain.Initial || states[2].Status != domain.Initial {
		t.Error("children must stay INITIAL until the entry fills")
	}

	// Entry fills; children wake up but do not fill at 150.
	execs := e.Match(spotEvent(day0, "150"))
	if len(execs) != 1 {
		t.Fatalf("entry event produced %d executions, want 1", len(execs))
	}
	for _, s := range e.OpenStates() {
		if s.Status != domain.Accepted {
			t.Errorf("child %s status = %s, want ACCEPTED after entry fill", s.ID, s.Status)
		}
	}
	if len(e.OpenStates()) != 2 {
		t.Fatalf("%d open orders after entry fill, want the 2 children", len(e.OpenStates()))
	}

	// Take-profit fills; the stop-loss sibling is cancelled.
	execs = e.Match(spotEvent(day0.Add(time.Minute), "171"))
	if len(execs) != 1 {
		t.Fatalf("take-profit event produced %d executions, want 1", len(execs))
	}
	if !execs[0].Size.Equal(dec("-10")) {
		t.Errorf("take-profit size = %s, want -10", execs[0].Size)
	}

	var cancelled, completed int
	for _, s := range e.States() {
		switch s.Status {
		case domain.Cancelled:
			cancelled++
		case domain.Completed:
			completed++
		}
	}
	if completed != 2 || cancelled != 1 {
		t.Errorf("final states: %d completed, %d cancelled; want 2 and 1", completed, cancelled)
	}
}

// Cancelling a bracket entry before it fills takes both dormant children
// with it.
func TestEngineCancelBracketCascades(t *testing.T) {
	e := newTestEngine()
	b := domain.NewBracketOrder(
		domain.NewLimitOrder(aapl, dec("10"), dec("145")),
		domain.NewLimitOrder(aapl, dec("-10"), dec("170")),
		domain.NewStopOrder(aapl, dec("-10"), dec("140")),
	)
	states := e.Register(b, day0)

	e.Cancel(states[0].ID, day0.Add(time.Minute))
	for _, s := range e.States() {
		if s.Status != domain.Cancelled {
			t.Errorf("order %s status = %s, want CANCELLED", s.ID, s.Status)
		}
	}
}

func TestEngineCancelClosedOrderIsNoop(t *testing.T) {
	e := newTestEngine()
	states := e.Register(domain.NewMarketOrder(aapl, dec("10")), day0)
	e.Match(spotEvent(day0, "150"))

	got := e.Cancel(states[0].ID, day0.Add(time.Minute))
	if got.Status != domain.Completed {
		t.Errorf("status = %s, want COMPLETED preserved after late cancel", got.Status)
	}
}

func TestEngineDayOrderExpires(t *testing.T) {
	e := newTestEngine()
	o := domain.NewLimitOrder(aapl, dec("10"), dec("100"))
	o.SetTIF(domain.Day)
	e.Register(o, day0)

	// Later the same calendar day: still live.
	e.Match(spotEvent(day0.Add(8*time.Hour), "150"))
	if got := e.States()[0].Status; got != domain.Accepted {
		t.Fatalf("status = %s, want ACCEPTED on the same day", got)
	}

	// First event of the next day: expired, even though the limit crosses.
	e.Match(spotEvent(day0.Add(24*time.Hour), "99"))
	if got := e.States()[0].Status; got != domain.Expired {
		t.Errorf("status = %s, want EXPIRED on the next day", got)
	}
}

func TestEngineGTCOrderExpiresAfterMaxAge(t *testing.T) {
	e := NewEngine(NewSpreadPriceModel(0), 48*time.Hour)
	e.Register(domain.NewLimitOrder(aapl, dec("10"), dec("100")), day0)

	e.Match(spotEvent(day0.Add(47*time.Hour), "150"))
	if got := e.States()[0].Status; got != domain.Accepted {
		t.Fatalf("status = %s, want ACCEPTED within max age", got)
	}

	e.Match(spotEvent(day0.Add(49*time.Hour), "150"))
	if got := e.States()[0].Status; got != domain.Expired {
		t.Errorf("status = %s, want EXPIRED past max age", got)
	}
}

// Replaying the same orders and events must produce identical executions.
func TestEngineDeterminism(t *testing.T) {
	run := func() []domain.Execution {
		e := newTestEngine()
		e.Register(domain.NewMarketOrder(aapl, dec("10")), day0)
		e.Register(domain.NewLimitOrder(aapl, dec("-5"), dec("151")), day0)
		e.Register(domain.NewStopOrder(aapl, dec("-5"), dec("148")), day0)

		var execs []domain.Execution
		execs = append(execs, e.Match(spotEvent(day0, "150"))...)
		execs = append(execs, e.Match(spotEvent(day0.Add(time.Minute), "152"))...)
		execs = append(execs, e.Match(spotEvent(day0.Add(2*time.Minute), "147"))...)
		return execs
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("runs produced %d and %d executions", len(a), len(b))
	}
	for i := range a {
		if a[i].OrderID != b[i].OrderID || !a[i].Size.Equal(b[i].Size) ||
			!a[i].Price.Equal(b[i].Price) || !a[i].Time.Equal(b[i].Time) {
			t.Errorf("execution %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestEnginePurge(t *testing.T) {
	e := newTestEngine()
	e.Register(domain.NewMarketOrder(aapl, dec("10")), day0)
	e.Register(domain.NewLimitOrder(aapl, dec("10"), dec("100")), day0)
	e.Match(spotEvent(day0, "150"))

	e.Purge()
	if len(e.States()) != 1 {
		t.Fatalf("%d tracked orders after purge, want 1 open limit", len(e.States()))
	}
	if got := e.States()[0].Status; got != domain.Accepted {
		t.Errorf("surviving status = %s, want ACCEPTED", got)
	}
}

func TestEngineIDsNotReusedAfterReset(t *testing.T) {
	e := newTestEngine()
	first := e.Register(domain.NewMarketOrder(aapl, dec("10")), day0)[0].ID
	e.Reset()
	second := e.Register(domain.NewMarketOrder(aapl, dec("10")), day0)[0].ID

	if first == second {
		t.Errorf("id %s reused after reset", second)
	}
	if len(e.States()) != 1 {
		t.Errorf("%d tracked orders after reset, want 1", len(e.States()))
	}
}

func TestSpreadPriceModel(t *testing.T) {
	m := NewSpreadPriceModel(10) // 10 bps
	item := domain.TradePrice{Spot: dec("100")}

	buy := m.Price(domain.NewMarketOrder(aapl, dec("1")), item)
	if !buy.Equal(dec("100.1")) {
		t.Errorf("buy price = %s, want 100.1", buy)
	}
	sell := m.Price(domain.NewMarketOrder(aapl, dec("-1")), item)
	if !sell.Equal(dec("99.9")) {
		t.Errorf("sell price = %s, want 99.9", sell)
	}
}

func TestFixedSlippageModel(t *testing.T) {
	m := FixedSlippageModel{Offset: dec("0.02")}
	item := domain.TradePrice{Spot: dec("100")}

	if got := m.Price(domain.NewMarketOrder(aapl, dec("1")), item); !got.Equal(dec("100.02")) {
		t.Errorf("buy price = %s, want 100.02", got)
	}
	if got := m.Price(domain.NewMarketOrder(aapl, dec("-1")), item); !got.Equal(dec("99.98")) {
		t.Errorf("sell price = %s, want 99.98", got)
	}
}
