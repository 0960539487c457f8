// Package events defines the AccountEvent stream and a non-blocking
// single-producer multi-consumer bus to fan it out to attached consumers.
// Each consumer has a fixed-size buffer chosen at Subscribe; events
// published while that buffer is full are dropped for that consumer.
package events

import "fmt"

// Kind discriminates the payload carried by an AccountEvent.
type Kind int8

const (
	OrdersOpen Kind = iota
	OrdersNew
	OrdersCancelled
	OrdersFilled
	OrdersPartiallyFilled
	BalanceEvent
	BalancesEvent
	TradeEvent
	PositionsEvent
	AccountConfigEvent
)

func (k Kind) String() string {
	switch k {
	case OrdersOpen:
		return "OrdersOpen"
	case OrdersNew:
		return "OrdersNew"
	case OrdersCancelled:
		return "OrdersCancelled"
	case OrdersFilled:
		return "OrdersFilled"
	case OrdersPartiallyFilled:
		return "OrdersPartiallyFilled"
	case BalanceEvent:
		return "Balance"
	case BalancesEvent:
		return "Balances"
	case TradeEvent:
		return "Trade"
	case PositionsEvent:
		return "Positions"
	case AccountConfigEvent:
		return "AccountConfig"
	default:
		return "Unknown"
	}
}

// Event is a causally ordered record of an account state change. Payload
// carries the kind-specific data (an *order.Order, []balance.Balance, a
// match.ClientTrade, etc.) — consumers type-switch on Kind to narrow it.
type Event struct {
	ExchangeTs int64
	Exchange   string
	Kind       Kind
	Payload    interface{}
}

func (e Event) String() string {
	return fmt.Sprintf("Event{ts=%d exchange=%s kind=%s}", e.ExchangeTs, e.Exchange, e.Kind)
}
