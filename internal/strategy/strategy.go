// Package strategy defines the Strategy interface that turns market events
// into trading instructions, and a Registry of named strategy factories.
package strategy

import (
	"sort"

	"github.com/rmarquis/roboquant/internal/domain"
)

// Strategy turns one market event plus the current account snapshot into
// zero or more trading instructions. Implementations may keep state between
// events (price history, indicators); a strategy instance belongs to exactly
// one simulation run.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// OnEvent is called once per market event, in time order. The returned
	// instructions are placed against the same event.
	OnEvent(event domain.Event, acct *domain.Account) []domain.Instruction
}

// Factory creates a fresh strategy instance. Parallel runs construct one
// instance per run so no state is shared.
type Factory func() Strategy

// Registry holds a named collection of strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New constructs a fresh instance of the named strategy. The second return
// value indicates whether the strategy was found.
func (r *Registry) New(name string) (Strategy, bool) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(), true
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
