// Package broker defines the Broker interface shared by the deterministic
// simulator and live brokerage adapters.
package broker

import (
	"context"

	"github.com/rmarquis/roboquant/internal/domain"
)

// Broker accepts trading instructions together with one market event and
// returns an immutable account snapshot reflecting their effect. The
// simulator implements it as a pure function of its inputs; live adapters
// translate the same contract to a real brokerage.
type Broker interface {
	// Name returns the broker identifier (e.g. "sim", "alpaca").
	Name() string

	// Place processes a batch of instructions against one market event.
	// Batch-level validation failures return an error with no state change;
	// per-order failures surface as rejected order states in the snapshot.
	Place(ctx context.Context, instructions []domain.Instruction, event domain.Event) (*domain.Account, error)

	// Account returns an immutable snapshot of the current account state.
	Account(ctx context.Context) (*domain.Account, error)
}
