package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
)

// Compile-time interface check.
var _ Feed = (*ParquetFeed)(nil)

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// ParquetFeed replays daily bars stored as Parquet files on disk. Files are
// organized by symbol and year:
//
//	<DataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
//
// All bars with the same timestamp are folded into one event, so an event
// carries one price observation per symbol.
type ParquetFeed struct {
	DataDir  string
	Market   string
	Currency string
	Symbols  []string
	Start    time.Time
	End      time.Time
}

// NewParquetFeed creates a feed over the given symbols and date range,
// rooted at dataDir.
func NewParquetFeed(dataDir, market, currency string, symbols []string, start, end time.Time) *ParquetFeed {
	return &ParquetFeed{
		DataDir:  dataDir,
		Market:   market,
		Currency: currency,
		Symbols:  symbols,
		Start:    start,
		End:      end,
	}
}

// Play reads all bars in range, folds them into time-ordered events, and
// sends them on out.
func (f *ParquetFeed) Play(ctx context.Context, out chan<- domain.Event) error {
	defer close(out)

	events, err := f.load()
	if err != nil {
		return err
	}
	for _, event := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- event:
		}
	}
	return nil
}

// load assembles the full event timeline for the configured symbols and
// range.
func (f *ParquetFeed) load() ([]domain.Event, error) {
	grouped := make(map[int64]map[domain.Asset]domain.PriceItem)

	for _, symbol := range f.Symbols {
		asset := domain.NewAsset(strings.ToUpper(symbol), f.Currency)
		for year := f.Start.Year(); year <= f.End.Year(); year++ {
			path := f.barPath(symbol, year)
			records, err := readParquetFile[BarRecord](path)
			if err != nil {
				// No file for this symbol/year.
				continue
			}
			for _, r := range records {
				ts := time.UnixMilli(r.Timestamp).UTC()
				if ts.Before(f.Start) || ts.After(f.End) {
					continue
				}
				prices, ok := grouped[r.Timestamp]
				if !ok {
					prices = make(map[domain.Asset]domain.PriceItem)
					grouped[r.Timestamp] = prices
				}
				prices[asset] = domain.BarPrice{
					Open:   decimal.NewFromFloat(r.Open),
					High:   decimal.NewFromFloat(r.High),
					Low:    decimal.NewFromFloat(r.Low),
					Close:  decimal.NewFromFloat(r.Close),
					Volume: decimal.NewFromInt(r.Volume),
				}
			}
		}
	}

	stamps := make([]int64, 0, len(grouped))
	for ts := range grouped {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	events := make([]domain.Event, 0, len(stamps))
	for _, ts := range stamps {
		events = append(events, domain.NewEvent(time.UnixMilli(ts).UTC(), grouped[ts]))
	}
	return events, nil
}

// AvailableSymbols lists all symbols that have bar data under the feed's
// market directory.
func (f *ParquetFeed) AvailableSymbols() ([]string, error) {
	dir := filepath.Join(f.DataDir, f.Market, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// WriteBars writes bar records under dataDir in the feed's on-disk layout,
// merging with any existing file for the same symbol and year. It is used
// by data import tooling and test fixtures.
func WriteBars(dataDir, market string, records []BarRecord) error {
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, r := range records {
		k := key{symbol: r.Symbol, year: time.UnixMilli(r.Timestamp).UTC().Year()}
		groups[k] = append(groups[k], r)
	}

	for k, group := range groups {
		path := filepath.Join(dataDir, market, "daily",
			strings.ToUpper(k.symbol), fmt.Sprintf("%d.parquet", k.year))

		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, group)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// barPath returns the filesystem path for a bar Parquet file.
func (f *ParquetFeed) barPath(symbol string, year int) string {
	return filepath.Join(f.DataDir, f.Market, "daily",
		strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp),
// preferring new records over existing ones. Results are sorted by
// timestamp.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
