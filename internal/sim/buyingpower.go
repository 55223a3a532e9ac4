package sim

import (
	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
)

// BuyingPowerModel computes the capacity of an account to take on new
// exposure, from a snapshot of it. It is recomputed after every ledger
// mutation.
type BuyingPowerModel interface {
	BuyingPower(acct *domain.Account) decimal.Decimal
}

// CashBuyingPower is the cash-only model: buying power equals total cash.
type CashBuyingPower struct{}

func (CashBuyingPower) BuyingPower(acct *domain.Account) decimal.Decimal {
	return acct.TotalCash()
}

// MarginBuyingPower models a margin account: equity, less the maintenance
// margin held against open exposure, levered up by the configured factor.
type MarginBuyingPower struct {
	Leverage          decimal.Decimal // e.g. 2 for 2:1 margin
	MaintenanceMargin decimal.Decimal // fraction of exposure, e.g. 0.25
}

// NewMarginBuyingPower creates a margin model with the given leverage and
// maintenance margin fraction.
func NewMarginBuyingPower(leverage, maintenanceMargin decimal.Decimal) MarginBuyingPower {
	return MarginBuyingPower{Leverage: leverage, MaintenanceMargin: maintenanceMargin}
}

func (m MarginBuyingPower) BuyingPower(acct *domain.Account) decimal.Decimal {
	exposure := decimal.Zero
	for _, p := range acct.Positions {
		exposure = exposure.Add(p.Exposure())
	}
	reserved := exposure.Mul(m.MaintenanceMargin)
	return acct.Equity().Sub(reserved).Mul(m.Leverage)
}
