package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/domain"
)

// Batch-level validation errors. When Place returns one of these the ledger
// has not been touched.
var (
	// ErrUnsupportedInstruction signals an instruction variant the broker
	// does not handle.
	ErrUnsupportedInstruction = errors.New("unsupported instruction")

	// ErrUnknownOrder signals a cancellation referencing an order id the
	// broker does not track.
	ErrUnknownOrder = errors.New("unknown order id")

	// ErrStaleEvent signals an event older than the last processed event.
	ErrStaleEvent = errors.New("stale event")
)

// Config holds the construction parameters of a simulated broker. Zero-value
// capability fields fall back to the defaults: fills at the reference price,
// no fees, cash-only buying power.
type Config struct {
	InitialDeposit decimal.Decimal
	Currency       string

	PriceModel       PriceModel
	FeeModel         FeeModel
	BuyingPowerModel BuyingPowerModel

	// ValidateBuyingPower rejects individual orders whose estimated cost
	// exceeds the account's buying power at acceptance time.
	ValidateBuyingPower bool

	// MaxOrderAge expires GTC orders that have been open longer than this.
	MaxOrderAge time.Duration
}

// DefaultConfig returns the configuration used when fields are left unset:
// a one million USD deposit, no slippage, no fees, cash-only buying power,
// and a 90 day maximum order age.
func DefaultConfig() Config {
	return Config{
		InitialDeposit:   decimal.NewFromInt(1_000_000),
		Currency:         "USD",
		PriceModel:       NewSpreadPriceModel(0),
		FeeModel:         NoFeeModel{},
		BuyingPowerModel: CashBuyingPower{},
		MaxOrderAge:      90 * 24 * time.Hour,
	}
}

// Broker is the deterministic simulated broker: the only entry point through
// which instructions and market events reach the execution engine and the
// ledger. A Broker instance is single-writer; callers must not invoke its
// methods concurrently. Independent simulation runs each own their own
// Broker.
type Broker struct {
	cfg    Config
	engine *Engine
	ledger *ledger
}

// New creates a simulated broker, deposits the configured initial balance,
// and computes the starting buying power.
func New(cfg Config) *Broker {
	def := DefaultConfig()
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	if cfg.InitialDeposit.IsZero() {
		cfg.InitialDeposit = def.InitialDeposit
	}
	if cfg.PriceModel == nil {
		cfg.PriceModel = def.PriceModel
	}
	if cfg.FeeModel == nil {
		cfg.FeeModel = def.FeeModel
	}
	if cfg.BuyingPowerModel == nil {
		cfg.BuyingPowerModel = def.BuyingPowerModel
	}
	if cfg.MaxOrderAge == 0 {
		cfg.MaxOrderAge = def.MaxOrderAge
	}

	b := &Broker{
		cfg:    cfg,
		engine: NewEngine(cfg.PriceModel, cfg.MaxOrderAge),
		ledger: newLedger(cfg.Currency),
	}
	b.ledger.deposit(cfg.Currency, cfg.InitialDeposit)
	b.refreshBuyingPower()
	return b
}

// Name returns "sim".
func (b *Broker) Name() string { return "sim" }

// Place processes a batch of instructions against one market event and
// returns an immutable snapshot of the account.
//
// The whole batch is validated first: an unsupported instruction variant, a
// cancellation of an unknown order, or an event older than the last one
// aborts the call before any ledger mutation. Per-order failures such as
// insufficient buying power reject only that order and are reflected in the
// snapshot's order states.
func (b *Broker) Place(_ context.Context, instructions []domain.Instruction, event domain.Event) (*domain.Account, error) {
	if !b.ledger.lastUpdate.IsZero() && event.Time.Before(b.ledger.lastUpdate) {
		return nil, fmt.Errorf("%w: event at %s, ledger at %s",
			ErrStaleEvent, event.Time.Format(time.RFC3339), b.ledger.lastUpdate.Format(time.RFC3339))
	}
	if err := b.validate(instructions); err != nil {
		return nil, err
	}

	var rejected []domain.OrderState
	for _, instr := range instructions {
		switch instr := instr.(type) {
		case *domain.Cancellation:
			b.engine.Cancel(instr.ID, event.Time)
		default:
			order := instr.(domain.Order)
			if !b.accepts(order, event) {
				rejected = append(rejected, b.engine.Reject(order, event.Time))
				continue
			}
			b.engine.Register(order, event.Time)
		}
	}

	for _, exec := range b.engine.Match(event) {
		fee := b.cfg.FeeModel.Fee(exec)
		b.ledger.apply(exec, fee)
	}

	b.ledger.updateOrders(b.engine.States())
	b.ledger.updateOrders(rejected)
	b.ledger.markToMarket(event)
	b.ledger.lastUpdate = event.Time

	snap := b.refreshBuyingPower()
	b.engine.Purge()
	return snap, nil
}

// validate checks the whole batch before any mutation.
func (b *Broker) validate(instructions []domain.Instruction) error {
	for _, instr := range instructions {
		switch instr := instr.(type) {
		case *domain.Cancellation:
			if !b.engine.Has(instr.ID) {
				return fmt.Errorf("%w: cancellation of %q", ErrUnknownOrder, instr.ID)
			}
		case *domain.MarketOrder, *domain.LimitOrder, *domain.StopOrder,
			*domain.StopLimitOrder, *domain.TrailingOrder, *domain.BracketOrder:
			// Supported order variants.
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedInstruction, instr)
		}
	}
	return nil
}

// accepts runs broker-side validation of a single order. A failure here
// rejects the order without affecting the rest of the batch.
func (b *Broker) accepts(order domain.Order, event domain.Event) bool {
	if order.Size().IsZero() {
		return false
	}
	if !b.cfg.ValidateBuyingPower {
		return true
	}
	price, ok := event.Price(order.Asset())
	if !ok {
		// No observation to estimate the cost with; leave it to matching.
		return true
	}
	cost := order.Size().Abs().Mul(price)
	return cost.LessThanOrEqual(b.ledger.buyingPower)
}

// Liquidate cancels every open order and flattens every held position with
// synthetic market orders priced at each position's last spot price. The
// flattening orders are issued in asset order so a replay assigns the same
// ids and appends the same trade sequence. The returned snapshot holds no
// open positions and no open orders.
func (b *Broker) Liquidate(t time.Time) (*domain.Account, error) {
	var instructions []domain.Instruction
	for _, s := range b.engine.OpenStates() {
		instructions = append(instructions, domain.NewCancellation(s.ID))
	}

	assets := make([]domain.Asset, 0, len(b.ledger.positions))
	for asset := range b.ledger.positions {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].Symbol != assets[j].Symbol {
			return assets[i].Symbol < assets[j].Symbol
		}
		return assets[i].Currency < assets[j].Currency
	})

	prices := make(map[domain.Asset]domain.PriceItem, len(assets))
	for _, asset := range assets {
		pos := b.ledger.positions[asset]
		instructions = append(instructions, domain.NewMarketOrder(asset, pos.Size.Neg()))
		prices[asset] = domain.TradePrice{Spot: pos.SpotPrice}
	}

	return b.Place(context.Background(), instructions, domain.NewEvent(t, prices))
}

// Reset clears positions, orders, trades and cash, re-deposits the initial
// balance, and returns the account to its starting state.
func (b *Broker) Reset() *domain.Account {
	b.engine.Reset()
	b.ledger = newLedger(b.cfg.Currency)
	b.ledger.deposit(b.cfg.Currency, b.cfg.InitialDeposit)
	return b.refreshBuyingPower()
}

// Account returns an immutable snapshot of the current account state.
func (b *Broker) Account(_ context.Context) (*domain.Account, error) {
	return b.ledger.snapshot(), nil
}

// refreshBuyingPower recomputes buying power from a fresh snapshot and
// returns that snapshot with the new value applied.
func (b *Broker) refreshBuyingPower() *domain.Account {
	snap := b.ledger.snapshot()
	b.ledger.buyingPower = b.cfg.BuyingPowerModel.BuyingPower(snap)
	snap.BuyingPower = b.ledger.buyingPower
	return snap
}
