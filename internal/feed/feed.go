// Package feed delivers market events to a simulation run. A feed produces
// an ordered, monotonically non-decreasing-in-time sequence of events, each
// a timestamp plus zero or more price observations keyed by asset.
package feed

import (
	"context"
	"sort"

	"github.com/rmarquis/roboquant/internal/domain"
)

// Feed replays market events in time order.
type Feed interface {
	// Play sends events on out in time order until the feed is exhausted or
	// ctx is done, then closes out.
	Play(ctx context.Context, out chan<- domain.Event) error
}

// SliceFeed replays an in-memory slice of events. It is the feed used by
// tests and synthetic scenarios.
type SliceFeed struct {
	events []domain.Event
}

// Compile-time interface check.
var _ Feed = (*SliceFeed)(nil)

// NewSliceFeed creates a feed over the given events, sorted by time.
func NewSliceFeed(events ...domain.Event) *SliceFeed {
	sorted := make([]domain.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})
	return &SliceFeed{events: sorted}
}

// Play sends the events in order and closes out.
func (f *SliceFeed) Play(ctx context.Context, out chan<- domain.Event) error {
	defer close(out)
	for _, event := range f.events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- event:
		}
	}
	return nil
}
