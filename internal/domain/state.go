package domain

import "time"

// OrderStatus is the lifecycle status of an order.
type OrderStatus int

const (
	Initial OrderStatus = iota
	Accepted
	Completed
	Cancelled
	Expired
	Rejected
)

// Open reports whether the status still allows the order to fill.
func (s OrderStatus) Open() bool {
	return s == Initial || s == Accepted
}

// Closed reports whether the status is terminal.
func (s OrderStatus) Closed() bool {
	return !s.Open()
}

func (s OrderStatus) String() string {
	switch s {
	case Initial:
		return "INITIAL"
	case Accepted:
		return "ACCEPTED"
	case Completed:
		return "COMPLETED"
	case Cancelled:
		return "CANCELLED"
	case Expired:
		return "EXPIRED"
	case Rejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// OrderState tracks one order through its lifecycle. OpenedAt stays zero
// until the order is first accepted; ClosedAt stays zero until the order
// reaches a terminal status. Once terminal, the state no longer changes.
type OrderState struct {
	ID       string
	Order    Order
	Status   OrderStatus
	OpenedAt time.Time
	ClosedAt time.Time
}

// NewOrderState creates the initial state for an order.
func NewOrderState(id string, order Order) OrderState {
	return OrderState{ID: id, Order: order, Status: Initial}
}

// Transition returns the state after applying status at time t. Legal moves
// are Initial to Accepted, Initial to Rejected, and any open status to a
// terminal one. Illegal or redundant transitions return the state unchanged,
// which makes the function idempotent and safe to call from repeated status
// reports.
func (s OrderState) Transition(t time.Time, status OrderStatus) OrderState {
	switch {
	case status == Accepted && s.Status == Initial:
		s.Status = Accepted
		s.OpenedAt = t
	case status.Closed() && s.Status.Open():
		if s.OpenedAt.IsZero() {
			s.OpenedAt = t
		}
		s.Status = status
		s.ClosedAt = t
	}
	return s
}
