package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOrderSides(t *testing.T) {
	asset := NewAsset("AAPL", "USD")

	buy := NewMarketOrder(asset, decimal.NewFromInt(10))
	if !buy.IsBuy() || buy.IsSell() {
		t.Error("positive size should be a buy")
	}

	sell := NewLimitOrder(asset, decimal.NewFromInt(-10), dec("150"))
	if sell.IsBuy() || !sell.IsSell() {
		t.Error("negative size should be a sell")
	}
}

func TestOrderDefaultsToGTC(t *testing.T) {
	asset := NewAsset("AAPL", "USD")
	o := NewStopOrder(asset, decimal.NewFromInt(10), dec("140"))

	if o.TIF() != GTC {
		t.Errorf("TIF = %s, want GTC", o.TIF())
	}
	o.SetTIF(Day)
	if o.TIF() != Day {
		t.Errorf("TIF = %s, want DAY", o.TIF())
	}
}

// Brackets present the entry leg as their own identity.
func TestBracketOrderDelegatesToEntry(t *testing.T) {
	asset := NewAsset("AAPL", "USD")
	entry := NewMarketOrder(asset, decimal.NewFromInt(10))
	tp := NewLimitOrder(asset, decimal.NewFromInt(-10), dec("170"))
	sl := NewStopOrder(asset, decimal.NewFromInt(-10), dec("140"))

	b := NewBracketOrder(entry, tp, sl)
	if b.Asset() != asset {
		t.Errorf("bracket asset = %v, want %v", b.Asset(), asset)
	}
	if !b.Size().Equal(decimal.NewFromInt(10)) {
		t.Errorf("bracket size = %s, want 10", b.Size())
	}
	if !b.IsBuy() {
		t.Error("bracket with buy entry should report IsBuy")
	}
}

func TestInstructionVariants(t *testing.T) {
	asset := NewAsset("AAPL", "USD")
	ten := decimal.NewFromInt(10)

	instructions := []Instruction{
		NewMarketOrder(asset, ten),
		NewLimitOrder(asset, ten, dec("150")),
		NewStopOrder(asset, ten, dec("140")),
		NewStopLimitOrder(asset, ten, dec("140"), dec("145")),
		NewTrailingOrder(asset, ten, dec("0.05")),
		NewBracketOrder(
			NewMarketOrder(asset, ten),
			NewLimitOrder(asset, ten.Neg(), dec("170")),
			NewStopOrder(asset, ten.Neg(), dec("140")),
		),
		NewCancellation("42"),
	}

	orders := 0
	for _, in := range instructions {
		if _, ok := in.(Order); ok {
			orders++
		}
	}
	if orders != len(instructions)-1 {
		t.Errorf("%d instructions satisfy Order, want all but the cancellation", orders)
	}
}

func TestExecutionNotional(t *testing.T) {
	asset := NewAsset("AAPL", "USD")
	e := Execution{
		OrderID: "1",
		Order:   NewMarketOrder(asset, decimal.NewFromInt(10)),
		Size:    decimal.NewFromInt(10),
		Price:   dec("150"),
		Time:    time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
	}
	if !e.Notional().Equal(dec("1500")) {
		t.Errorf("notional = %s, want 1500", e.Notional())
	}

	e.Size = decimal.NewFromInt(-10)
	if !e.Notional().Equal(dec("-1500")) {
		t.Errorf("sell notional = %s, want -1500", e.Notional())
	}
}
