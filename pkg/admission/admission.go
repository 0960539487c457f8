// Package admission implements OrderAdmission (C8): validating a
// RequestOpen, reserving balance, applying latency, classifying the
// maker/taker role, and either resting the order in its book or
// executing it immediately.
package admission

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/orellana-quant/backtest-account/pkg/balance"
	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/config"
	"github.com/orellana-quant/backtest-account/pkg/events"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
	"github.com/orellana-quant/backtest-account/pkg/latency"
	"github.com/orellana-quant/backtest-account/pkg/match"
	"github.com/orellana-quant/backtest-account/pkg/order"
	"github.com/orellana-quant/backtest-account/pkg/orderbook"
	"github.com/orellana-quant/backtest-account/pkg/position"
)

// Admission holds the collaborators OrderAdmission needs: id generation,
// the balance ledger, a latency model, the matcher (for its books and
// last-observed trade price), the position book (for direction-conflict
// checks), the fee schedule, and the event bus.
type Admission struct {
	ids          *idgen.IdGen
	ledger       *balance.Ledger
	latencyModel *latency.Model
	engine       *match.Engine
	positions    *position.Book
	fees         config.FeesBook
	positionMode config.PositionMode
	bus          *events.Bus
	log          *zap.SugaredLogger
}

func New(ids *idgen.IdGen, ledger *balance.Ledger, latencyModel *latency.Model, engine *match.Engine, positions *position.Book, fees config.FeesBook, positionMode config.PositionMode, bus *events.Bus, log *zap.SugaredLogger) *Admission {
	return &Admission{
		ids:          ids,
		ledger:       ledger,
		latencyModel: latencyModel,
		engine:       engine,
		positions:    positions,
		fees:         fees,
		positionMode: positionMode,
		bus:          bus,
		log:          log,
	}
}

// Admit validates and processes req, returning the resulting Open order
// or the rejection error. now is the wall-clock millisecond used both to
// seed the latency sample and to timestamp emitted events.
func (a *Admission) Admit(req order.Request, now int64) (*order.Order, error) {
	if req.Instruction == common.Cancel {
		return nil, fmt.Errorf("admission: Cancel is not a RequestOpen instruction")
	}
	if !order.ValidClientOrderId(req.Cid) {
		return nil, fmt.Errorf("admission: invalid client order id format: %q", req.Cid)
	}
	if req.Cid != "" && a.engine.Books().Exists(req.Cid) {
		return nil, &common.OrderAlreadyExistsError{ClientOrderId: req.Cid}
	}

	size, err := a.resolveDirectionConflict(req)
	if err != nil {
		return nil, err
	}

	refPrice := req.Price
	if refPrice == 0 {
		if lp, ok := a.engine.LastPrice(req.Instrument); ok {
			refPrice = lp
		}
	}

	if _, _, err := a.ledger.ReserveForOpen(req.Instrument, req.Side, refPrice, size); err != nil {
		return nil, err
	}

	predictedTs := req.ClientTs + a.latencyModel.Sample(now)

	book := a.engine.Books().For(req.Instrument)
	bestOpposing, hasOpposing := book.BestPrice(req.Side.Toggle())

	role, rejectErr := a.classifyRole(req, bestOpposing, hasOpposing)
	if rejectErr != nil {
		a.release(req.Instrument, req.Side, refPrice, size)
		return nil, rejectErr
	}

	o := &order.Order{
		Instruction: req.Instruction,
		Exchange:    req.Exchange,
		Instrument:  req.Instrument,
		ClientTs:    req.ClientTs,
		PredictedTs: predictedTs,
		Cid:         req.Cid,
		Side:        req.Side,
		Status:      order.Open,
		Role:        role,
		Id:          a.ids.NewOrderID(),
		Price:       req.Price,
		Size:        size,
		FilledQty:   0,
		ReduceOnly:  req.ReduceOnly,
	}

	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: req.Exchange, Kind: events.OrdersNew, Payload: o})
	if bal, err := a.ledger.Balance(balance.ReservationToken(req.Instrument, req.Side)); err == nil {
		a.bus.Publish(events.Event{ExchangeTs: now, Exchange: req.Exchange, Kind: events.BalanceEvent, Payload: bal})
	}

	switch req.Instruction {
	case common.Market, common.ImmediateOrCancel, common.FillOrKill:
		return a.executeImmediately(o, refPrice, now)
	default:
		book.Add(o)
		return o, nil
	}
}

// resolveDirectionConflict applies the NetMode single-direction rule: a
// request opposing an existing position is rejected unless reduce_only,
// in which case its size is capped at the opposing position's size.
func (a *Admission) resolveDirectionConflict(req order.Request) (float64, error) {
	if a.positionMode != config.NetMode {
		return req.Size, nil
	}
	opposing, hasOpposing := a.positions.Get(req.Instrument, req.Side.Toggle())
	if !hasOpposing {
		if req.ReduceOnly {
			return 0, ErrNothingToReduce
		}
		return req.Size, nil
	}
	if !req.ReduceOnly {
		return 0, common.ErrDirectionConflict
	}
	size := req.Size
	if size > opposing.Meta.CurrentSize {
		size = opposing.Meta.CurrentSize
	}
	return size, nil
}

func (a *Admission) release(instrument common.Instrument, side common.Side, price, size float64) {
	if _, _, err := a.ledger.ReleaseOnCancel(instrument, side, price, size); err != nil {
		a.log.Warnw("failed to release reservation on rejection", "err", err)
	}
}

// classifyRole assigns Maker/Taker per the admission contract: Market,
// ImmediateOrCancel, and FillOrKill are always Taker; PostOnlyLimit is
// Maker only if it would not cross, else rejected; Limit/GoodTilCancelled
// classify by comparing price against the opposing side's current best.
func (a *Admission) classifyRole(req order.Request, bestOpposing float64, hasOpposing bool) (common.OrderRole, error) {
	switch req.Instruction {
	case common.Market, common.ImmediateOrCancel, common.FillOrKill:
		return common.Taker, nil
	case common.PostOnlyLimit:
		if crosses(req.Side, req.Price, bestOpposing, hasOpposing) {
			return 0, common.ErrPostOnlyWouldCross
		}
		return common.Maker, nil
	default: // Limit, GoodTilCancelled
		if crosses(req.Side, req.Price, bestOpposing, hasOpposing) {
			return common.Taker, nil
		}
		return common.Maker, nil
	}
}

func crosses(side common.Side, price, bestOpposing float64, hasOpposing bool) bool {
	if !hasOpposing {
		return false
	}
	if side == common.Buy {
		return price >= bestOpposing
	}
	return price <= bestOpposing
}

// executeImmediately resolves a Market/IOC/FOK order at admission time
// rather than resting it. When the account's own opposing-side book is
// non-empty it walks that book (a self-trade: there is only one client, so
// nothing stops a taker from crossing its own resting orders). When that
// book is empty it falls back to filling in full against the matcher's
// last-observed trade price, since the historical trade tape is then the
// only liquidity source available to a taker-only instruction.
func (a *Admission) executeImmediately(o *order.Order, refPrice float64, now int64) (*order.Order, error) {
	_, hadPrice := a.engine.LastPrice(o.Instrument)
	if !hadPrice && o.Price == 0 {
		a.release(o.Instrument, o.Side, refPrice, o.Size)
		return nil, ErrNoReferencePrice
	}

	book := a.engine.Books().For(o.Instrument)
	bookSide := o.Side.Toggle()

	if _, hasResting := book.Best(bookSide); hasResting {
		return a.executeAgainstBook(o, book, bookSide, refPrice, now)
	}
	return a.executeAgainstReferencePrice(o, refPrice, now)
}

// executeAgainstReferencePrice is the legacy taker-only-liquidity path:
// there is no resting opposing order to walk, so the order either fills in
// full at the matcher's last-observed trade price or is rejected whole. A
// priced IOC/FOK fills only if its price crosses that trade price; with no
// trade seen yet for the instrument it is rejected with ErrNoReferencePrice.
// refPrice is the price the reservation was made at.
func (a *Admission) executeAgainstReferencePrice(o *order.Order, refPrice float64, now int64) (*order.Order, error) {
	execPrice, ok := a.engine.LastPrice(o.Instrument)
	if !ok {
		a.release(o.Instrument, o.Side, refPrice, o.Size)
		return nil, ErrNoReferencePrice
	}
	willCross := true
	if o.Instruction != common.Market {
		if o.Side == common.Buy {
			willCross = o.Price >= execPrice
		} else {
			willCross = o.Price <= execPrice
		}
	}

	if !willCross {
		a.release(o.Instrument, o.Side, refPrice, o.Size)
		o.Status = order.Cancelled
		a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.OrdersCancelled, Payload: o})
		if o.Instruction == common.FillOrKill {
			return nil, ErrFillOrKillUnfilled
		}
		return nil, ErrImmediateOrCancelUnfilled
	}

	rate, err := a.fees.RateFor(o.Instrument.Kind, common.Taker)
	if err != nil {
		a.release(o.Instrument, o.Side, refPrice, o.Size)
		return nil, err
	}
	fee := o.Size * execPrice * rate
	if o.Side == common.Buy && refPrice > execPrice {
		a.release(o.Instrument, o.Side, refPrice-execPrice, o.Size)
	}

	o.FilledQty = o.Size
	o.Status = order.FullyFill
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.OrdersFilled, Payload: o})

	baseBal, quoteBal, err := a.ledger.ApplyTrade(o.Instrument, o.Side, execPrice, o.Size, fee)
	if err != nil {
		return nil, err
	}
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.BalancesEvent, Payload: []balance.Balance{baseBal, quoteBal}})

	ct := match.ClientTrade{
		Exchange:   o.Exchange,
		Timestamp:  now,
		TradeId:    a.engine.Books().For(o.Instrument).NextTradeId(),
		OrderId:    o.Id,
		Cid:        o.Cid,
		Instrument: o.Instrument,
		Side:       o.Side,
		Price:      execPrice,
		Size:       o.Size,
		Fees:       fee,
	}
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.TradeEvent, Payload: ct})

	pos, _ := a.positions.OpenOrUpdate(o.Instrument, o.Instrument.Kind, o.Side, execPrice, o.Size, fee, now)
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.PositionsEvent, Payload: pos})

	return o, nil
}

// crossableSize sums how much of o's size the resting orders on bookSide
// would take, without mutating the book. Market orders take whatever
// price the book offers; Limit-priced IOC/FOK only count resting orders
// o's price actually crosses, stopping at the first one that doesn't,
// since Snapshot is already in price-time priority.
func crossableSize(book *orderbook.Book, bookSide common.Side, o *order.Order) float64 {
	var total float64
	for _, resting := range book.Snapshot(bookSide) {
		if o.Instruction != common.Market && !o.Crosses(resting.Price, true) {
			break
		}
		total += resting.Remaining()
	}
	return total
}

// executeAgainstBook walks bookSide's resting orders in price-time
// priority, settling a self-trade fill against each one that crosses,
// until o is filled or the book stops crossing. FillOrKill reverts with
// no mutation at all if the resting depth cannot cover o.Size in full;
// Market and ImmediateOrCancel settle whatever crosses and cancel the
// unfilled residual, if any, leaving a genuine partial fill in place
// rather than rejecting the whole order.
func (a *Admission) executeAgainstBook(o *order.Order, book *orderbook.Book, bookSide common.Side, refPrice float64, now int64) (*order.Order, error) {
	if o.Instruction == common.FillOrKill && crossableSize(book, bookSide, o) < o.Size-1e-12 {
		a.release(o.Instrument, o.Side, refPrice, o.Size)
		o.Status = order.Cancelled
		a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.OrdersCancelled, Payload: o})
		return nil, ErrFillOrKillUnfilled
	}

	for o.Remaining() > 1e-12 {
		resting, ok := book.Front(bookSide)
		if !ok {
			break
		}
		if o.Instruction != common.Market && !o.Crosses(resting.Price, true) {
			break
		}
		if err := a.settleSelfTradeFill(o, book, bookSide, resting, now); err != nil {
			return nil, err
		}
	}

	unfilled := o.Remaining()
	if unfilled <= 1e-12 {
		return o, nil
	}

	a.release(o.Instrument, o.Side, refPrice, unfilled)
	if o.FilledQty <= 1e-12 {
		o.Status = order.Cancelled
		a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.OrdersCancelled, Payload: o})
		return nil, ErrImmediateOrCancelUnfilled
	}
	return o, nil
}

// settleSelfTradeFill executes one fill of o against resting, applying
// both sides' effects in the same causal order every other fill in this
// engine uses: order-state event, then balance, then trade, then
// position — first for the resting (maker) order, then for o (taker).
func (a *Admission) settleSelfTradeFill(o *order.Order, book *orderbook.Book, bookSide common.Side, resting *order.Order, now int64) error {
	fill := min(o.Remaining(), resting.Remaining())
	price := resting.Price

	takerRate, err := a.fees.RateFor(o.Instrument.Kind, common.Taker)
	if err != nil {
		return err
	}
	makerRate, err := a.fees.RateFor(resting.Instrument.Kind, resting.Role)
	if err != nil {
		return err
	}
	takerFee := fill * price * takerRate
	makerFee := fill * price * makerRate
	tradeId := book.NextTradeId()

	if fill >= resting.Remaining()-1e-12 {
		book.PopFront(bookSide)
		resting.FilledQty = resting.Size
		resting.Status = order.FullyFill
		a.bus.Publish(events.Event{ExchangeTs: now, Exchange: resting.Exchange, Kind: events.OrdersFilled, Payload: resting})
	} else {
		resting.FilledQty += fill
		resting.Status = order.PartialFill
		a.bus.Publish(events.Event{ExchangeTs: now, Exchange: resting.Exchange, Kind: events.OrdersPartiallyFilled, Payload: resting})
	}

	if fill >= o.Remaining()-1e-12 {
		o.FilledQty = o.Size
		o.Status = order.FullyFill
	} else {
		o.FilledQty += fill
		o.Status = order.PartialFill
	}
	if o.Status == order.FullyFill {
		a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.OrdersFilled, Payload: o})
	} else {
		a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.OrdersPartiallyFilled, Payload: o})
	}

	restingBase, restingQuote, err := a.ledger.ApplyTrade(resting.Instrument, resting.Side, price, fill, makerFee)
	if err != nil {
		return err
	}
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: resting.Exchange, Kind: events.BalancesEvent, Payload: []balance.Balance{restingBase, restingQuote}})

	takerBase, takerQuote, err := a.ledger.ApplyTrade(o.Instrument, o.Side, price, fill, takerFee)
	if err != nil {
		return err
	}
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.BalancesEvent, Payload: []balance.Balance{takerBase, takerQuote}})

	restingTrade := match.ClientTrade{
		Exchange: resting.Exchange, Timestamp: now, TradeId: tradeId,
		OrderId: resting.Id, Cid: resting.Cid, Instrument: resting.Instrument,
		Side: resting.Side, Price: price, Size: fill, Fees: makerFee,
	}
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: resting.Exchange, Kind: events.TradeEvent, Payload: restingTrade})

	takerTrade := match.ClientTrade{
		Exchange: o.Exchange, Timestamp: now, TradeId: tradeId,
		OrderId: o.Id, Cid: o.Cid, Instrument: o.Instrument,
		Side: o.Side, Price: price, Size: fill, Fees: takerFee,
	}
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.TradeEvent, Payload: takerTrade})

	restingPos, _ := a.positions.OpenOrUpdate(resting.Instrument, resting.Instrument.Kind, resting.Side, price, fill, makerFee, now)
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: resting.Exchange, Kind: events.PositionsEvent, Payload: restingPos})

	takerPos, _ := a.positions.OpenOrUpdate(o.Instrument, o.Instrument.Kind, o.Side, price, fill, takerFee, now)
	a.bus.Publish(events.Event{ExchangeTs: now, Exchange: o.Exchange, Kind: events.PositionsEvent, Payload: takerPos})

	return nil
}
