// Command trade connects to an Alpaca paper-trading account and prints the
// live account state: cash, buying power, positions and open orders.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rmarquis/roboquant/internal/broker/alpaca"
	"github.com/rmarquis/roboquant/internal/config"
	"github.com/rmarquis/roboquant/internal/util"
)

func main() {
	var (
		cfgPath = flag.String("config", "", "path to YAML config (defaults apply when empty)")
		timeout = flag.Duration("timeout", 10*time.Second, "handshake timeout before continuing degraded")
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

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("missing Alpaca credentials; set alpaca.api_key/api_secret or APCA_API_KEY_ID/APCA_API_SECRET_KEY")
	}

	ctx := context.Background()
	b := alpaca.New(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, logger)
	if err := b.Connect(ctx, *timeout); err != nil {
		log.Fatalf("connecting to alpaca: %v", err)
	}
	if b.Degraded() {
		fmt.Fprintln(os.Stderr, "warning: running degraded, order state refreshes by polling only")
	}

	acct, err := b.Account(ctx)
	if err != nil {
		log.Fatalf("fetching account: %v", err)
	}

	fmt.Printf("cash %s %s  equity %s  buying power %s\n",
		acct.CashBalance(acct.BaseCurrency).StringFixed(2), acct.BaseCurrency,
		acct.Equity().StringFixed(2), acct.BuyingPower.StringFixed(2))

	if len(acct.Positions) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tSIZE\tAVG\tSPOT\tUNREALIZED")
		for _, p := range acct.Positions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				p.Asset.Symbol, p.Size.String(), p.AvgPrice.StringFixed(2),
				p.SpotPrice.StringFixed(2), p.UnrealizedPNL().StringFixed(2))
		}
		w.Flush()
	}

	if open := acct.OpenOrders(); len(open) > 0 {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ORDER\tSYMBOL\tSIZE\tSTATUS\tOPENED")
		for _, s := range open {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.Order.Asset().Symbol, s.Order.Size().String(),
				s.Status, s.OpenedAt.Format("2006-01-02 15:04"))
		}
		w.Flush()
	}
}
