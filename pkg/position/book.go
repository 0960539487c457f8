package position

import (
	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
)

// Key identifies one (instrument, side) position slot under NetMode, or
// one (instrument, side) slot under LongShortMode where both directions
// can be simultaneously open.
type Key struct {
	Instrument common.Instrument
	Side       common.Side
}

// Book holds every open position for one account, plus the archive of
// positions that have fully unwound.
type Book struct {
	direction DirectionMode
	ids       *idgen.IdGen
	open      map[Key]*Position
	exited    map[idgen.PositionId]*Position
}

func NewBook(direction DirectionMode, ids *idgen.IdGen) *Book {
	return &Book{
		direction: direction,
		ids:       ids,
		open:      make(map[Key]*Position),
		exited:    make(map[idgen.PositionId]*Position),
	}
}

func (b *Book) HasPosition(instrument common.Instrument, side common.Side) bool {
	_, ok := b.open[Key{Instrument: instrument, Side: side}]
	return ok
}

func (b *Book) Get(instrument common.Instrument, side common.Side) (*Position, bool) {
	p, ok := b.open[Key{Instrument: instrument, Side: side}]
	return p, ok
}

// opposingKey returns the key of the position a fill on the given side
// would reduce, under NetMode: a Buy fill reduces an existing Sell
// (short) position, and vice versa.
func opposingKey(instrument common.Instrument, fillSide common.Side) Key {
	return Key{Instrument: instrument, Side: fillSide.Toggle()}
}

// OpenOrUpdate folds a fill into the book. Under NetMode, a fill first
// reduces any opposing position before opening/extending one on its own
// side. Under LongShortMode, each side is tracked independently and a
// fill only ever extends its own side's position. Returns the position
// touched and, if the fill fully closed it, the now-archived copy.
func (b *Book) OpenOrUpdate(instrument common.Instrument, kind common.InstrumentKind, side common.Side, price, size, fee float64, ts int64) (touched *Position, closed *Position) {
	if b.direction == NetMode {
		if opp, ok := b.open[opposingKey(instrument, side)]; ok {
			reduceSize := size
			if reduceSize > opp.Meta.CurrentSize {
				reduceSize = opp.Meta.CurrentSize
			}
			didClose := opp.Meta.ReduceAndMaybeClose(reduceSize, price)
			opp.Meta.UpdateTs = ts
			if didClose {
				delete(b.open, opposingKey(instrument, side))
				b.exited[opp.Meta.PositionId] = opp
				closed = opp
			}
			remaining := size - reduceSize
			if remaining <= 0 {
				return opp, closed
			}
			// Remaining size flips the position onto this side.
			size = remaining
		}
	}

	key := Key{Instrument: instrument, Side: side}
	pos, ok := b.open[key]
	if !ok {
		pos = &Position{
			Kind: kind,
			Meta: Meta{
				PositionId: b.ids.NewPositionID(instrument, ts),
				EnterTs:    ts,
				UpdateTs:   ts,
				Instrument: instrument,
				Side:       side,
			},
			PositionDirectionMode: b.direction,
		}
		b.open[key] = pos
	}
	pos.Meta.UpdateAvgPrice(price, size, fee)
	pos.Meta.UpdateTs = ts
	pos.Meta.UpdateSymbolPrice(price)
	return pos, closed
}

// UpdatePrices recomputes unrealised PnL for every open position against
// the latest mark for instrument.
func (b *Book) UpdatePrices(instrument common.Instrument, price float64) {
	for key, pos := range b.open {
		if key.Instrument == instrument {
			pos.Meta.UpdateSymbolPrice(price)
		}
	}
}

// Close force-closes a position (e.g. on liquidation) and archives it.
func (b *Book) Close(instrument common.Instrument, side common.Side, exitPrice float64) (*Position, bool) {
	key := Key{Instrument: instrument, Side: side}
	pos, ok := b.open[key]
	if !ok {
		return nil, false
	}
	pos.Meta.ReduceAndMaybeClose(pos.Meta.CurrentSize, exitPrice)
	delete(b.open, key)
	b.exited[pos.Meta.PositionId] = pos
	return pos, true
}

// Restore reinserts a previously persisted open position, bypassing the
// fill-folding path since the position's running averages were already
// computed before it was snapshotted.
func (b *Book) Restore(pos *Position) {
	b.open[Key{Instrument: pos.Meta.Instrument, Side: pos.Meta.Side}] = pos
}

// RestoreExited reinserts a previously persisted archived position.
func (b *Book) RestoreExited(pos *Position) {
	b.exited[pos.Meta.PositionId] = pos
}

// AllOpen returns every currently open position.
func (b *Book) AllOpen() []*Position {
	out := make([]*Position, 0, len(b.open))
	for _, p := range b.open {
		out = append(out, p)
	}
	return out
}

// Exited returns the archive of fully closed positions keyed by id.
func (b *Book) Exited() map[idgen.PositionId]*Position {
	return b.exited
}
