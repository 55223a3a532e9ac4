// Package alpaca adapts the Broker interface to the Alpaca trading API. It
// is the live counterpart of the simulator: instructions are translated to
// Alpaca order requests and the account snapshot is rebuilt from the Alpaca
// account, position and order endpoints.
package alpaca

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"github.com/rmarquis/roboquant/internal/broker"
	"github.com/rmarquis/roboquant/internal/domain"
	"github.com/rmarquis/roboquant/internal/util"
)

// Compile-time interface check.
var _ broker.Broker = (*Broker)(nil)

// Broker implements the Broker interface against an Alpaca trading account.
type Broker struct {
	client   *alpaca.Client
	log      *slog.Logger
	currency string
	limiter  *util.RateLimiter

	mu       sync.RWMutex
	degraded bool
	updates  map[string]domain.OrderStatus // order id -> last streamed status
}

// New creates an Alpaca broker adapter with the given credentials and API
// endpoint.
func New(apiKey, apiSecret, baseURL string, log *slog.Logger) *Broker {
	return &Broker{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		log:      log.With("broker", "alpaca"),
		currency: "USD",
		limiter:  util.NewRateLimiter(200), // Alpaca rate limit headroom.
		updates:  make(map[string]domain.OrderStatus),
	}
}

// Name returns "alpaca".
func (b *Broker) Name() string { return "alpaca" }

// Connect performs the asynchronous initial-state handshake: it primes the
// account state and subscribes to trade updates in the background, then
// waits up to timeout for the one-shot ready signal. If the signal does not
// arrive in time the adapter continues in a degraded mode where order state
// is only refreshed by polling, and a warning is logged.
func (b *Broker) Connect(ctx context.Context, timeout time.Duration) error {
	ready := make(chan struct{})

	go func() {
		err := util.Retry(ctx, 3, time.Second, func() error {
			_, err := b.client.GetAccount()
			return err
		})
		if err != nil {
			b.log.Error("initial account fetch failed", "error", err)
			return
		}
		close(ready)
	}()

	go func() {
		err := b.client.StreamTradeUpdates(ctx, func(tu alpaca.TradeUpdate) {
			b.mu.Lock()
			b.updates[tu.Order.ID] = statusFromAlpaca(tu.Order.Status)
			b.mu.Unlock()
		}, alpaca.StreamTradeUpdatesRequest{})
		if err != nil && ctx.Err() == nil {
			b.log.Error("trade update stream ended", "error", err)
		}
	}()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		b.mu.Lock()
		b.degraded = true
		b.mu.Unlock()
		b.log.Warn("ready signal not received in time, continuing degraded",
			"timeout", timeout)
		return nil
	}
}

// Degraded reports whether the initial handshake timed out.
func (b *Broker) Degraded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.degraded
}

// Place submits the instructions to Alpaca and returns a fresh account
// snapshot. The market event is ignored: a live exchange prices its own
// fills.
func (b *Broker) Place(ctx context.Context, instructions []domain.Instruction, _ domain.Event) (*domain.Account, error) {
	for _, instr := range instructions {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		switch instr := instr.(type) {
		case *domain.Cancellation:
			if err := b.client.CancelOrder(instr.ID); err != nil {
				return nil, fmt.Errorf("cancelling order %s: %w", instr.ID, err)
			}
		default:
			order, ok := instr.(domain.Order)
			if !ok {
				return nil, fmt.Errorf("%T: unsupported instruction", instr)
			}
			req, err := requestFromOrder(order)
			if err != nil {
				return nil, err
			}
			if _, err := b.client.PlaceOrder(req); err != nil {
				return nil, fmt.Errorf("placing %s order for %s: %w",
					req.Type, order.Asset().Symbol, err)
			}
		}
	}
	return b.Account(ctx)
}

// requestFromOrder translates an order variant to an Alpaca order request.
func requestFromOrder(order domain.Order) (alpaca.PlaceOrderRequest, error) {
	qty := order.Size().Abs()
	req := alpaca.PlaceOrderRequest{
		Symbol:      order.Asset().Symbol,
		Qty:         &qty,
		Side:        alpaca.Buy,
		TimeInForce: alpaca.GTC,
	}
	if order.IsSell() {
		req.Side = alpaca.Sell
	}
	if order.TIF() == domain.Day {
		req.TimeInForce = alpaca.Day
	}

	switch o := order.(type) {
	case *domain.MarketOrder:
		req.Type = alpaca.Market
	case *domain.LimitOrder:
		req.Type = alpaca.Limit
		req.LimitPrice = &o.Limit
	case *domain.StopOrder:
		req.Type = alpaca.Stop
		req.StopPrice = &o.Stop
	case *domain.StopLimitOrder:
		req.Type = alpaca.StopLimit
		req.StopPrice = &o.Stop
		req.LimitPrice = &o.Limit
	case *domain.TrailingOrder:
		req.Type = alpaca.TrailingStop
		pct := o.TrailPct.Mul(decimal.NewFromInt(100))
		req.TrailPercent = &pct
	case *domain.BracketOrder:
		return bracketRequest(o)
	default:
		return alpaca.PlaceOrderRequest{}, fmt.Errorf("%T: unsupported order variant", order)
	}
	return req, nil
}

// bracketRequest maps a bracket order to Alpaca's native bracket order
// class. Alpaca only accepts limit take-profits and stop(-limit) stop-losses
// as bracket legs.
func bracketRequest(b *domain.BracketOrder) (alpaca.PlaceOrderRequest, error) {
	req, err := requestFromOrder(b.Entry)
	if err != nil {
		return alpaca.PlaceOrderRequest{}, err
	}
	req.OrderClass = alpaca.Bracket

	tp, ok := b.TakeProfit.(*domain.LimitOrder)
	if !ok {
		return alpaca.PlaceOrderRequest{}, fmt.Errorf("%T: bracket take-profit must be a limit order", b.TakeProfit)
	}
	req.TakeProfit = &alpaca.TakeProfit{LimitPrice: &tp.Limit}

	switch sl := b.StopLoss.(type) {
	case *domain.StopOrder:
		req.StopLoss = &alpaca.StopLoss{StopPrice: &sl.Stop}
	case *domain.StopLimitOrder:
		req.StopLoss = &alpaca.StopLoss{StopPrice: &sl.Stop, LimitPrice: &sl.Limit}
	default:
		return alpaca.PlaceOrderRequest{}, fmt.Errorf("%T: bracket stop-loss must be a stop or stop-limit order", b.StopLoss)
	}
	return req, nil
}

// Account rebuilds a snapshot from the Alpaca account, positions and open
// orders.
func (b *Broker) Account(ctx context.Context) (*domain.Account, error) {
	var acct *alpaca.Account
	err := util.Retry(ctx, 3, time.Second, func() error {
		var err error
		acct, err = b.client.GetAccount()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("fetching positions: %w", err)
	}
	open, err := b.client.GetOrders(alpaca.GetOrdersRequest{Status: "open"})
	if err != nil {
		return nil, fmt.Errorf("fetching orders: %w", err)
	}

	currency := b.currency
	if acct.Currency != "" {
		currency = acct.Currency
	}

	snap := &domain.Account{
		BaseCurrency: currency,
		Cash:         map[string]decimal.Decimal{currency: acct.Cash},
		Positions:    make(map[domain.Asset]domain.Position, len(positions)),
		BuyingPower:  acct.BuyingPower,
		LastUpdate:   time.Now(),
	}

	for _, p := range positions {
		asset := domain.NewAsset(p.Symbol, currency)
		pos := domain.Position{
			Asset:      asset,
			Size:       p.Qty,
			AvgPrice:   p.AvgEntryPrice,
			LastUpdate: snap.LastUpdate,
		}
		if p.CurrentPrice != nil {
			pos.SpotPrice = *p.CurrentPrice
		}
		snap.Positions[asset] = pos
	}

	b.mu.RLock()
	for _, o := range open {
		status := statusFromAlpaca(o.Status)
		if streamed, ok := b.updates[o.ID]; ok {
			status = streamed
		}
		state := domain.NewOrderState(o.ID, orderFromAlpaca(o, currency))
		state = state.Transition(o.SubmittedAt, domain.Accepted)
		state = state.Transition(snap.LastUpdate, status)
		snap.Orders = append(snap.Orders, state)
	}
	b.mu.RUnlock()

	return snap, nil
}

// orderFromAlpaca reconstructs the order variant behind an Alpaca order.
func orderFromAlpaca(o alpaca.Order, currency string) domain.Order {
	asset := domain.NewAsset(o.Symbol, currency)
	size := decimal.Zero
	if o.Qty != nil {
		size = *o.Qty
	}
	if o.Side == alpaca.Sell {
		size = size.Neg()
	}

	switch o.Type {
	case alpaca.Limit:
		if o.LimitPrice != nil {
			return domain.NewLimitOrder(asset, size, *o.LimitPrice)
		}
	case alpaca.Stop:
		if o.StopPrice != nil {
			return domain.NewStopOrder(asset, size, *o.StopPrice)
		}
	case alpaca.StopLimit:
		if o.StopPrice != nil && o.LimitPrice != nil {
			return domain.NewStopLimitOrder(asset, size, *o.StopPrice, *o.LimitPrice)
		}
	case alpaca.TrailingStop:
		if o.TrailPercent != nil {
			pct := o.TrailPercent.Div(decimal.NewFromInt(100))
			return domain.NewTrailingOrder(asset, size, pct)
		}
	}
	return domain.NewMarketOrder(asset, size)
}

// statusFromAlpaca maps Alpaca order status strings onto the lifecycle
// statuses.
func statusFromAlpaca(status string) domain.OrderStatus {
	switch status {
	case "filled":
		return domain.Completed
	case "canceled", "done_for_day":
		return domain.Cancelled
	case "expired":
		return domain.Expired
	case "rejected", "denied":
		return domain.Rejected
	default:
		return domain.Accepted
	}
}
