// Command backtest runs one or more backtests over Parquet bar data and
// records the results in the journal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/backtest"
	"github.com/rmarquis/roboquant/internal/config"
	"github.com/rmarquis/roboquant/internal/feed"
	"github.com/rmarquis/roboquant/internal/journal"
	"github.com/rmarquis/roboquant/internal/sim"
	"github.com/rmarquis/roboquant/internal/strategy"
	"github.com/rmarquis/roboquant/internal/strategy/builtins"
	"github.com/rmarquis/roboquant/internal/util"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to YAML config (defaults apply when empty)")
		symbols = flag.String("symbols", "", "comma-separated symbols (overrides config)")
		from    = flag.String("from", "", "start date YYYY-MM-DD (overrides config)")
		to      = flag.String("to", "", "end date YYYY-MM-DD (overrides config)")
		name    = flag.String("strategy", "", "strategy name (overrides config)")
		sweep   = flag.Bool("sweep", false, "run one independent backtest per symbol")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}
	if *symbols != "" {
		cfg.Backtest.Symbols = strings.Split(*symbols, ",")
	}
	if *from != "" {
		cfg.Backtest.StartDate = *from
	}
	if *to != "" {
		cfg.Backtest.EndDate = *to
	}
	if *name != "" {
		cfg.Backtest.Strategy = *name
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if len(cfg.Backtest.Symbols) == 0 {
		log.Fatal("no symbols configured; use -symbols or the config file")
	}
	start, err := time.Parse("2006-01-02", cfg.Backtest.StartDate)
	if err != nil {
		log.Fatalf("bad start date %q: %v", cfg.Backtest.StartDate, err)
	}
	end, err := time.Parse("2006-01-02", cfg.Backtest.EndDate)
	if err != nil {
		log.Fatalf("bad end date %q: %v", cfg.Backtest.EndDate, err)
	}

	registry := strategy.NewRegistry()
	registry.Register("sma-cross", func() strategy.Strategy {
		return builtins.NewSMACross(10, 30, decimal.NewFromFloat(cfg.Backtest.OrderSize))
	})

	jnl, err := journal.Open(cfg.Storage.JournalPath)
	if err != nil {
		log.Fatalf("opening journal: %v", err)
	}
	defer jnl.Close()

	ctx := context.Background()
	results, err := run(ctx, cfg, registry, start, end, *sweep)
	if err != nil {
		log.Fatalf("backtest failed: %v", err)
	}

	for _, result := range results {
		if err := jnl.SaveResult(ctx, result); err != nil {
			log.Fatalf("recording run %s: %v", result.RunID, err)
		}
		printResult(result)
	}
}

// run builds the jobs and executes them over the configured worker pool.
func run(ctx context.Context, cfg *config.Config, registry *strategy.Registry, start, end time.Time, sweep bool) ([]*backtest.Result, error) {
	groups := [][]string{cfg.Backtest.Symbols}
	if sweep {
		groups = nil
		for _, s := range cfg.Backtest.Symbols {
			groups = append(groups, []string{s})
		}
	}

	var jobs []backtest.Job
	for _, symbols := range groups {
		strat, ok := registry.New(cfg.Backtest.Strategy)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q (have: %s)",
				cfg.Backtest.Strategy, strings.Join(registry.List(), ", "))
		}
		jobs = append(jobs, backtest.Job{
			Name:     strings.Join(symbols, "+"),
			Feed:     feed.NewParquetFeed(cfg.Storage.DataDir, cfg.Backtest.Market, cfg.Sim.Currency, symbols, start, end),
			Strategy: strat,
			Broker:   simConfig(cfg.Sim),
		})
	}

	return backtest.RunAll(ctx, jobs, cfg.Backtest.Workers, nil)
}

// simConfig maps the file configuration onto broker capabilities.
func simConfig(c config.Sim) sim.Config {
	sc := sim.Config{
		InitialDeposit:      decimal.NewFromFloat(c.InitialDeposit),
		Currency:            c.Currency,
		PriceModel:          sim.NewSpreadPriceModel(c.SpreadBps),
		ValidateBuyingPower: c.ValidateBuyingPower,
		MaxOrderAge:         time.Duration(c.MaxOrderAgeDays) * 24 * time.Hour,
	}

	switch c.FeeModel {
	case "percent":
		sc.FeeModel = sim.PercentFeeModel{Rate: decimal.NewFromFloat(c.FeeRate)}
	case "flat":
		sc.FeeModel = sim.FlatFeeModel{Amount: decimal.NewFromFloat(c.FeeAmount)}
	}

	if c.BuyingPower == "margin" {
		sc.BuyingPowerModel = sim.NewMarginBuyingPower(
			decimal.NewFromFloat(c.Leverage),
			decimal.NewFromFloat(c.MaintenanceMargin),
		)
	}
	return sc
}

func printResult(r *backtest.Result) {
	fmt.Fprintf(os.Stdout,
		"run %s strategy=%s equity=%s return=%.2f%% drawdown=%.2f%% trades=%d winrate=%.0f%%\n",
		r.RunID, r.Strategy, r.FinalEquity.StringFixed(2),
		r.TotalReturn*100, r.MaxDrawdown*100, r.TotalTrades, r.WinRate*100)
}
