// Package backtest replays a feed through a strategy against the simulated
// broker and computes performance metrics for the run.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
	"github.com/rmarquis/roboquant/internal/feed"
	"github.com/rmarquis/roboquant/internal/sim"
	"github.com/rmarquis/roboquant/internal/strategy"
)

// EquityPoint is one sample of the account equity over a run.
type EquityPoint struct {
	Time   time.Time
	Equity decimal.Decimal
}

// Result holds the summary metrics produced by a backtest run, plus the
// final account snapshot.
type Result struct {
	RunID          string
	Strategy       string
	InitialDeposit decimal.Decimal
	FinalEquity    decimal.Decimal
	TotalReturn    float64
	MaxDrawdown    float64
	TotalTrades    int
	WinRate        float64
	ProfitFactor   float64
	EquityCurve    []EquityPoint
	Account        *domain.Account
}

// Runner drives one backtest: events from the feed are handed to the
// strategy, the resulting instructions placed against the broker, and the
// equity curve sampled after every event. The run ends by liquidating the
// portfolio at the last event time.
type Runner struct {
	Feed     feed.Feed
	Strategy strategy.Strategy
	Broker   *sim.Broker
	Log      *slog.Logger
}

// Run executes the backtest and returns its result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	acct := r.Broker.Reset()
	initial := acct.Equity()

	events := make(chan domain.Event, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- r.Feed.Play(ctx, events)
	}()

	var (
		curve []EquityPoint
		last  time.Time
		err   error
	)
	for event := range events {
		instructions := r.Strategy.OnEvent(event, acct)
		acct, err = r.Broker.Place(ctx, instructions, event)
		if err != nil {
			return nil, fmt.Errorf("placing instructions at %s: %w",
				event.Time.Format(time.RFC3339), err)
		}
		curve = append(curve, EquityPoint{Time: event.Time, Equity: acct.Equity()})
		last = event.Time
	}
	if err := <-errc; err != nil {
		return nil, fmt.Errorf("playing feed: %w", err)
	}

	if !last.IsZero() {
		acct, err = r.Broker.Liquidate(last)
		if err != nil {
			return nil, fmt.Errorf("liquidating portfolio: %w", err)
		}
		curve = append(curve, EquityPoint{Time: last, Equity: acct.Equity()})
	}

	result := newResult(r.Strategy.Name(), initial, acct, curve)
	log.Info("backtest finished",
		"run", result.RunID,
		"strategy", result.Strategy,
		"trades", result.TotalTrades,
		"return", result.TotalReturn,
	)
	return result, nil
}

// newResult computes the summary metrics from the final account and equity
// curve.
func newResult(strategyName string, initial decimal.Decimal, acct *domain.Account, curve []EquityPoint) *Result {
	result := &Result{
		RunID:          uuid.NewString(),
		Strategy:       strategyName,
		InitialDeposit: initial,
		FinalEquity:    acct.Equity(),
		TotalTrades:    len(acct.Trades),
		EquityCurve:    curve,
		Account:        acct,
	}

	if !initial.IsZero() {
		result.TotalReturn, _ = result.FinalEquity.Sub(initial).Div(initial).Float64()
	}
	result.MaxDrawdown = maxDrawdown(curve)
	result.WinRate, result.ProfitFactor = tradeStats(acct.Trades)
	return result
}

// maxDrawdown returns the largest peak-to-trough equity decline as a
// fraction of the peak.
func maxDrawdown(curve []EquityPoint) float64 {
	var peak, worst float64
	for _, p := range curve {
		equity, _ := p.Equity.Float64()
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// tradeStats returns the win rate and profit factor over the realized
// trades. Trades with zero PnL (pure opening trades) are not counted as
// wins or losses.
func tradeStats(trades []domain.Trade) (winRate, profitFactor float64) {
	var wins, losses int
	grossProfit, grossLoss := decimal.Zero, decimal.Zero
	for _, t := range trades {
		switch t.PNL.Sign() {
		case 1:
			wins++
			grossProfit = grossProfit.Add(t.PNL)
		case -1:
			losses++
			grossLoss = grossLoss.Sub(t.PNL)
		}
	}

	if wins+losses > 0 {
		winRate = float64(wins) / float64(wins+losses)
	}
	switch {
	case grossLoss.Sign() > 0:
		profitFactor, _ = grossProfit.Div(grossLoss).Float64()
	case grossProfit.Sign() > 0:
		profitFactor = math.Inf(1)
	}
	return winRate, profitFactor
}
