// Command journal lists recorded backtest runs, or dumps the trades of one
// run when -run is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/rmarquis/roboquant/internal/config"
	"github.com/rmarquis/roboquant/internal/journal"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to YAML config (defaults apply when empty)")
		runID   = flag.String("run", "", "dump the trades of this run instead of listing runs")
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

	jnl, err := journal.Open(cfg.Storage.JournalPath)
	if err != nil {
		log.Fatalf("opening journal: %v", err)
	}
	defer jnl.Close()

	ctx := context.Background()
	if *runID != "" {
		if err := dumpTrades(ctx, jnl, *runID); err != nil {
			log.Fatalf("listing trades: %v", err)
		}
		return
	}
	if err := listRuns(ctx, jnl); err != nil {
		log.Fatalf("listing runs: %v", err)
	}
}

func listRuns(ctx context.Context, jnl *journal.Journal) error {
	runs, err := jnl.ListRuns(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTRATEGY\tRECORDED\tEQUITY\tRETURN\tDRAWDOWN\tTRADES\tWIN RATE")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f%%\t%.2f%%\t%d\t%.0f%%\n",
			r.ID, r.Strategy, r.RecordedAt.Format("2006-01-02 15:04"),
			r.FinalEquity.StringFixed(2), r.TotalReturn*100,
			r.MaxDrawdown*100, r.TotalTrades, r.WinRate*100)
	}
	return w.Flush()
}

func dumpTrades(ctx context.Context, jnl *journal.Journal, runID string) error {
	trades, err := jnl.Trades(ctx, runID)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Printf("no trades recorded for run %s\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSYMBOL\tSIZE\tPRICE\tFEE\tPNL\tORDER")
	for _, t := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.Time.Format("2006-01-02 15:04"), t.Asset.Symbol,
			t.Size.String(), t.Price.StringFixed(2),
			t.Fee.StringFixed(2), t.PNL.StringFixed(2), t.OrderID)
	}
	return w.Flush()
}
