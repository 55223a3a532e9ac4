package domain

import (
	"testing"
)

func TestTradePriceBounds(t *testing.T) {
	p := TradePrice{Spot: dec("150")}
	if !p.Price().Equal(dec("150")) || !p.LowPrice().Equal(dec("150")) || !p.HighPrice().Equal(dec("150")) {
		t.Errorf("spot observation bounds should all equal 150: %s %s %s",
			p.Price(), p.LowPrice(), p.HighPrice())
	}
}

func TestBarPriceUsesOpen(t *testing.T) {
	p := BarPrice{Open: dec("100"), High: dec("110"), Low: dec("95"), Close: dec("105")}
	if !p.Price().Equal(dec("100")) {
		t.Errorf("bar reference price = %s, want the open 100", p.Price())
	}
	if !p.LowPrice().Equal(dec("95")) || !p.HighPrice().Equal(dec("110")) {
		t.Errorf("bar bounds = %s..%s, want 95..110", p.LowPrice(), p.HighPrice())
	}
}

func TestEventPrice(t *testing.T) {
	aapl := NewAsset("AAPL", "USD")
	msft := NewAsset("MSFT", "USD")
	ev := NewEvent(t0, map[Asset]PriceItem{aapl: TradePrice{Spot: dec("150")}})

	if price, ok := ev.Price(aapl); !ok || !price.Equal(dec("150")) {
		t.Errorf("Price(AAPL) = %s, %v", price, ok)
	}
	if _, ok := ev.Price(msft); ok {
		t.Error("Price(MSFT) should report no observation")
	}
}
