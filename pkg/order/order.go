// Package order defines the order value type and its state machine.
package order

import (
	"fmt"
	"regexp"

	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
)

// Status is the order's position in the state machine described by:
//
//	RequestOpen --admit--> Pending --latency elapsed--> Open
//	Open --match (size - filled)--> PartialFill --more matches--> PartialFill | FullyFill
//	Open --cancel--> Cancelled
//
// PartialFill is observable but the order stays Open in the book until it
// is either fully filled or cancelled.
type Status int8

const (
	RequestOpen Status = iota
	Pending
	Open
	PartialFill
	FullyFill
	Cancelled
)

func (s Status) String() string {
	switch s {
	case RequestOpen:
		return "RequestOpen"
	case Pending:
		return "Pending"
	case Open:
		return "Open"
	case PartialFill:
		return "PartialFill"
	case FullyFill:
		return "FullyFill"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

var clientOrderIdPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,20}$`)

// ValidClientOrderId reports whether cid is empty (no client id supplied)
// or matches the required format.
func ValidClientOrderId(cid string) bool {
	return cid == "" || clientOrderIdPattern.MatchString(cid)
}

// Order is a single client order as it moves through admission, the book,
// and matching. State transitions happen in place rather than through a
// generic type parameter per state, since Go has no idiomatic analogue to a
// type-state enum; Status narrows the valid operations instead.
type Order struct {
	Instruction   common.OrderInstruction
	Exchange      string
	Instrument    common.Instrument
	ClientTs      int64
	PredictedTs   int64
	Cid           string
	Side          common.Side
	Status        Status
	Role          common.OrderRole
	Id            idgen.OrderId
	Price         float64
	Size          float64
	FilledQty     float64
	ReduceOnly    bool
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{id=%d cid=%s %s %s %s price=%.8f size=%.8f filled=%.8f status=%s role=%s}",
		o.Id, o.Cid, o.Side, o.Instruction, o.Instrument, o.Price, o.Size, o.FilledQty, o.Status, o.Role)
}

// Remaining is size not yet filled.
func (o *Order) Remaining() float64 {
	return o.Size - o.FilledQty
}

// Crosses reports whether a limit order at o.Price would take liquidity
// against the given best opposing price.
func (o *Order) Crosses(bestOpposing float64, hasOpposing bool) bool {
	if !hasOpposing {
		return false
	}
	if o.Side == common.Buy {
		return o.Price >= bestOpposing
	}
	return o.Price <= bestOpposing
}

// Request is the inbound RequestOpen payload before admission assigns an id.
type Request struct {
	Instruction common.OrderInstruction
	Exchange    string
	Instrument  common.Instrument
	ClientTs    int64
	Cid         string
	Side        common.Side
	Price       float64
	Size        float64
	ReduceOnly  bool
}
