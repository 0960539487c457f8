// Package orderbook maintains the per-instrument bid/ask queues of open
// orders in strict price-time priority.
package orderbook

import (
	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
	"github.com/orellana-quant/backtest-account/pkg/order"
)

// Book holds one instrument's resting orders. Bids sort with the highest
// price first; asks sort with the lowest price first. Equal prices keep
// insertion order (FIFO), enforcing price-time priority.
type Book struct {
	Instrument common.Instrument
	batchId    uint64
	bids       []*order.Order
	asks       []*order.Order
}

func New(instrument common.Instrument) *Book {
	return &Book{Instrument: instrument}
}

// NextTradeId returns a monotonically increasing id scoped to this
// instrument, used to stamp ClientTrade records.
func (b *Book) NextTradeId() uint64 {
	b.batchId++
	return b.batchId
}

func (b *Book) queue(side common.Side) *[]*order.Order {
	if side == common.Buy {
		return &b.bids
	}
	return &b.asks
}

// Add inserts o into its side queue, preserving price priority and FIFO
// ordering among equal prices.
func (b *Book) Add(o *order.Order) {
	q := b.queue(o.Side)
	idx := len(*q)
	if o.Side == common.Buy {
		for i, existing := range *q {
			if existing.Price < o.Price {
				idx = i
				break
			}
		}
	} else {
		for i, existing := range *q {
			if existing.Price > o.Price {
				idx = i
				break
			}
		}
	}
	*q = append(*q, nil)
	copy((*q)[idx+1:], (*q)[idx:])
	(*q)[idx] = o
}

// RemoveByID removes and returns the order with the given id from side's
// queue in O(n).
func (b *Book) RemoveByID(side common.Side, id idgen.OrderId) (*order.Order, error) {
	q := b.queue(side)
	for i, o := range *q {
		if o.Id == id {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return o, nil
		}
	}
	return nil, &common.OrderNotFoundError{OrderId: uint64(id)}
}

// RemoveByCid removes and returns the order with the given client order id,
// scanning both sides since the caller may not know which side it rests on.
func (b *Book) RemoveByCid(cid string) (*order.Order, error) {
	for _, side := range []common.Side{common.Buy, common.Sell} {
		q := b.queue(side)
		for i, o := range *q {
			if o.Cid == cid {
				*q = append((*q)[:i], (*q)[i+1:]...)
				return o, nil
			}
		}
	}
	return nil, &common.OrderNotFoundError{ClientOrderId: cid}
}

// Best returns the top-of-book order for side, if any.
func (b *Book) Best(side common.Side) (*order.Order, bool) {
	q := *b.queue(side)
	if len(q) == 0 {
		return nil, false
	}
	return q[0], true
}

// BestPrice is a convenience over Best for admission's role classification.
func (b *Book) BestPrice(side common.Side) (float64, bool) {
	o, ok := b.Best(side)
	if !ok {
		return 0, false
	}
	return o.Price, true
}

// Front returns the head of side's queue without removing it, for the
// matcher to inspect while walking.
func (b *Book) Front(side common.Side) (*order.Order, bool) {
	return b.Best(side)
}

// PopFront removes and returns the head of side's queue.
func (b *Book) PopFront(side common.Side) (*order.Order, bool) {
	q := b.queue(side)
	if len(*q) == 0 {
		return nil, false
	}
	o := (*q)[0]
	*q = (*q)[1:]
	return o, true
}

// Snapshot returns a read-only copy of side's queue, for tests and for
// admission's FillOrKill depth check.
func (b *Book) Snapshot(side common.Side) []*order.Order {
	q := *b.queue(side)
	out := make([]*order.Order, len(q))
	copy(out, q)
	return out
}

// AllOpen returns every resting order across both sides.
func (b *Book) AllOpen() []*order.Order {
	out := make([]*order.Order, 0, len(b.bids)+len(b.asks))
	out = append(out, b.bids...)
	out = append(out, b.asks...)
	return out
}

// IsOrdered reports whether side's queue respects price priority: bids
// strictly non-increasing, asks non-decreasing.
func (b *Book) IsOrdered(side common.Side) bool {
	q := *b.queue(side)
	for i := 1; i < len(q); i++ {
		if side == common.Buy {
			if q[i].Price > q[i-1].Price {
				return false
			}
		} else {
			if q[i].Price < q[i-1].Price {
				return false
			}
		}
	}
	return true
}
