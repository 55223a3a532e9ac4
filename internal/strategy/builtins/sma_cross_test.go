package builtins

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
)

var (
	aapl = domain.NewAsset("AAPL", "USD")
	day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

func priceEvent(day int, price int64) domain.Event {
	return domain.NewEvent(day0.AddDate(0, 0, day), map[domain.Asset]domain.PriceItem{
		aapl: domain.TradePrice{Spot: decimal.NewFromInt(price)},
	})
}

func emptyAccount() *domain.Account {
	return &domain.Account{Positions: map[domain.Asset]domain.Position{}}
}

func longAccount(size int64, price int64) *domain.Account {
	return &domain.Account{Positions: map[domain.Asset]domain.Position{
		aapl: {
			Asset:    aapl,
			Size:     decimal.NewFromInt(size),
			AvgPrice: decimal.NewFromInt(price),
		},
	}}
}

func TestSMACrossBuysOnUpwardCross(t *testing.T) {
	s := NewSMACross(2, 3, decimal.NewFromInt(10))
	acct := emptyAccount()

	// Flat prices fill the window and prime the side without trading.
	for day, price := range []int64{10, 10, 10} {
		if got := s.OnEvent(priceEvent(day, price), acct); len(got) != 0 {
			t.Fatalf("day %d emitted %d instructions while priming, want 0", day, len(got))
		}
	}

	// A jump lifts the short SMA above the long one.
	instructions := s.OnEvent(priceEvent(3, 13), acct)
	if len(instructions) != 1 {
		t.Fatalf("got %d instructions on upward cross, want 1", len(instructions))
	}
	order, ok := instructions[0].(*domain.MarketOrder)
	if !ok || !order.IsBuy() || !order.Size().Equal(decimal.NewFromInt(10)) {
		t.Errorf("instruction = %+v, want a market buy of 10", instructions[0])
	}
}

func TestSMACrossFlattensOnDownwardCross(t *testing.T) {
	s := NewSMACross(2, 3, decimal.NewFromInt(10))

	for day, price := range []int64{10, 10, 10} {
		s.OnEvent(priceEvent(day, price), emptyAccount())
	}
	s.OnEvent(priceEvent(3, 13), emptyAccount())

	// The drop pushes the short SMA back below; the held long is flattened.
	instructions := s.OnEvent(priceEvent(4, 7), longAccount(10, 13))
	if len(instructions) != 1 {
		t.Fatalf("got %d instructions on downward cross, want 1", len(instructions))
	}
	order, ok := instructions[0].(*domain.MarketOrder)
	if !ok || !order.IsSell() || !order.Size().Equal(decimal.NewFromInt(-10)) {
		t.Errorf("instruction = %+v, want a market sell of the full position", instructions[0])
	}
}

func TestSMACrossSkipsBuyWhenAlreadyHolding(t *testing.T) {
	s := NewSMACross(2, 3, decimal.NewFromInt(10))

	for day, price := range []int64{10, 10, 10} {
		s.OnEvent(priceEvent(day, price), emptyAccount())
	}
	if got := s.OnEvent(priceEvent(3, 13), longAccount(10, 10)); len(got) != 0 {
		t.Errorf("emitted %d instructions with a position already held, want 0", len(got))
	}
}

func TestSMACrossNoRepeatWhileOnSameSide(t *testing.T) {
	s := NewSMACross(2, 3, decimal.NewFromInt(10))
	acct := emptyAccount()

	for day, price := range []int64{10, 10, 10} {
		s.OnEvent(priceEvent(day, price), acct)
	}
	s.OnEvent(priceEvent(3, 13), acct)

	// Still rising: no new signal without a fresh cross.
	if got := s.OnEvent(priceEvent(4, 15), acct); len(got) != 0 {
		t.Errorf("emitted %d instructions without a new cross, want 0", len(got))
	}
}
