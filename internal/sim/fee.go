package sim

import (
	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
)

// FeeModel computes the trading fee charged for a completed execution. Fees
// are non-negative and withdrawn from cash on top of the execution's
// notional value.
type FeeModel interface {
	Fee(exec domain.Execution) decimal.Decimal
}

// NoFeeModel charges nothing.
type NoFeeModel struct{}

func (NoFeeModel) Fee(domain.Execution) decimal.Decimal { return decimal.Zero }

// PercentFeeModel charges a fraction of the execution's absolute notional
// value.
type PercentFeeModel struct {
	Rate decimal.Decimal // fraction, e.g. 0.001 for 10 bps
}

func (m PercentFeeModel) Fee(exec domain.Execution) decimal.Decimal {
	return exec.Notional().Abs().Mul(m.Rate)
}

// FlatFeeModel charges a fixed amount per execution.
type FlatFeeModel struct {
	Amount decimal.Decimal
}

func (m FlatFeeModel) Fee(domain.Execution) decimal.Decimal { return m.Amount }
