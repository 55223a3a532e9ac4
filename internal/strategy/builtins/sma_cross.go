// Package builtins provides built-in strategy implementations.
package builtins

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
	"github.com/rmarquis/roboquant/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It buys a
// fixed size when the short-period SMA crosses above the long-period SMA and
// flattens the position when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	orderSize   decimal.Decimal

	history map[domain.Asset][]decimal.Decimal
	above   map[domain.Asset]bool
	primed  map[domain.Asset]bool
}

// NewSMACross creates an SMACross strategy with the given short and long
// periods, buying orderSize units on each crossover.
func NewSMACross(short, long int, orderSize decimal.Decimal) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		orderSize:   orderSize,
		history:     make(map[domain.Asset][]decimal.Decimal),
		above:       make(map[domain.Asset]bool),
		primed:      make(map[domain.Asset]bool),
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// OnEvent updates the per-asset price history and emits a market buy on an
// upward crossover, or a flattening market sell on a downward one. Assets
// are visited in symbol order so a run is reproducible.
func (s *SMACross) OnEvent(event domain.Event, acct *domain.Account) []domain.Instruction {
	assets := make([]domain.Asset, 0, len(event.Prices))
	for asset := range event.Prices {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Symbol < assets[j].Symbol
	})

	var instructions []domain.Instruction
	for _, asset := range assets {
		price, _ := event.Price(asset)

		prices := append(s.history[asset], price)
		if len(prices) > s.longPeriod {
			prices = prices[len(prices)-s.longPeriod:]
		}
		s.history[asset] = prices
		if len(prices) < s.longPeriod {
			continue
		}

		above := sma(prices, s.shortPeriod).GreaterThan(sma(prices, s.longPeriod))

		// The first complete window only records which side we are on.
		if !s.primed[asset] {
			s.primed[asset] = true
			s.above[asset] = above
			continue
		}
		if above == s.above[asset] {
			continue
		}
		s.above[asset] = above

		if above {
			if _, held := acct.Positions[asset]; !held {
				instructions = append(instructions, domain.NewMarketOrder(asset, s.orderSize))
			}
		} else if pos, held := acct.Positions[asset]; held && pos.Long() {
			instructions = append(instructions, domain.NewMarketOrder(asset, pos.Size.Neg()))
		}
	}
	return instructions
}

// sma returns the mean of the last n prices.
func sma(prices []decimal.Decimal, n int) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range prices[len(prices)-n:] {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
