// Package account implements AccountCore (C10): the single point of entry
// for every client request, serializing admission, cancellation, balance,
// and position mutations behind one command queue so the rest of the
// engine never observes a torn intermediate state.
package account

import (
	"go.uber.org/zap"

	"github.com/orellana-quant/backtest-account/pkg/admission"
	"github.com/orellana-quant/backtest-account/pkg/balance"
	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/config"
	"github.com/orellana-quant/backtest-account/pkg/events"
	"github.com/orellana-quant/backtest-account/pkg/feed"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
	"github.com/orellana-quant/backtest-account/pkg/latency"
	"github.com/orellana-quant/backtest-account/pkg/match"
	"github.com/orellana-quant/backtest-account/pkg/order"
	"github.com/orellana-quant/backtest-account/pkg/orderbook"
	"github.com/orellana-quant/backtest-account/pkg/persist"
	"github.com/orellana-quant/backtest-account/pkg/position"
)

// Core owns every piece of mutable account state directly — the ledger,
// order books, and position book — rather than reaching them through a
// back-pointer to some owning struct. A single goroutine drains cmdCh and
// runs each submitted closure to completion before picking up the next,
// which is the channel-actor equivalent of the original's "every request
// is processed sequentially from the inbound channel" guarantee.
type Core struct {
	ids       *idgen.IdGen
	ledger    *balance.Ledger
	books     *orderbook.Set
	positions *position.Book
	admission *admission.Admission
	engine    *match.Engine
	bus       *events.Bus
	store     *persist.Store
	feed      feed.Source
	cfg       config.Config
	log       *zap.SugaredLogger

	cmdCh chan func()
	done  chan struct{}
}

// New wires a fresh Core from cfg and starts its command loop. store may
// be nil, in which case no snapshot is persisted or restored.
func New(cfg config.Config, log *zap.SugaredLogger, store *persist.Store) *Core {
	ids := idgen.New()
	ledger := balance.NewLedger()
	books := orderbook.NewSet()
	positions := position.NewBook(position.DirectionMode(cfg.PositionMode), ids)
	bus := events.NewBus()
	engine := match.NewEngine(books, ledger, positions, cfg.FeesBook, bus, log)
	latencyModel := latency.New(cfg.LatencyMode, cfg.LatencyMinMs, cfg.LatencyMaxMs)
	adm := admission.New(ids, ledger, latencyModel, engine, positions, cfg.FeesBook, cfg.PositionMode, bus, log)

	c := &Core{
		ids:       ids,
		ledger:    ledger,
		books:     books,
		positions: positions,
		admission: adm,
		engine:    engine,
		bus:       bus,
		store:     store,
		cfg:       cfg,
		log:       log,
		cmdCh:     make(chan func(), 64),
		done:      make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *Core) run() {
	for {
		select {
		case cmd := <-c.cmdCh:
			cmd()
		case <-c.done:
			for {
				select {
				case cmd := <-c.cmdCh:
					cmd()
				default:
					return
				}
			}
		}
	}
}

// Close stops the command loop. Pending commands already enqueued still
// run; no new ones should be submitted afterward.
func (c *Core) Close() {
	close(c.done)
}

// do submits fn to the command loop and blocks until it has run, giving
// every exported method on Core synchronous, serialized semantics without
// the caller needing to know about the queue underneath.
func (c *Core) do(fn func()) {
	reply := make(chan struct{})
	c.cmdCh <- func() {
		fn()
		close(reply)
	}
	<-reply
}

// Events returns a new subscriber channel on the account's event bus.
func (c *Core) Events(buffer int) chan events.Event {
	return c.bus.Subscribe(buffer)
}

// AttachFeed installs the historical trade source LetItRoll advances.
func (c *Core) AttachFeed(src feed.Source) {
	c.do(func() { c.feed = src })
}

// FetchOrdersOpen returns every resting order for instrument.
func (c *Core) FetchOrdersOpen(instrument common.Instrument) (orders []*order.Order) {
	c.do(func() {
		orders = c.books.For(instrument).AllOpen()
	})
	return
}

// FetchTokenBalances returns every known token's balance.
func (c *Core) FetchTokenBalances() (out map[common.Token]balance.Balance) {
	c.do(func() {
		out = c.ledger.All()
	})
	return
}

// FetchTokenBalance returns a single token's balance.
func (c *Core) FetchTokenBalance(token common.Token) (bal balance.Balance, err error) {
	c.do(func() {
		bal, err = c.ledger.Balance(token)
	})
	return
}

// FetchAllPositions returns every currently open position.
func (c *Core) FetchAllPositions() (out []*position.Position) {
	c.do(func() {
		out = c.positions.AllOpen()
	})
	return
}

// FetchLongPosition returns instrument's open long (Buy-side) position.
func (c *Core) FetchLongPosition(instrument common.Instrument) (pos *position.Position, ok bool) {
	c.do(func() {
		pos, ok = c.positions.Get(instrument, common.Buy)
	})
	return
}

// FetchShortPosition returns instrument's open short (Sell-side) position.
func (c *Core) FetchShortPosition(instrument common.Instrument) (pos *position.Position, ok bool) {
	c.do(func() {
		pos, ok = c.positions.Get(instrument, common.Sell)
	})
	return
}

// OpenResult pairs one OpenOrders request with its outcome.
type OpenResult struct {
	Order *order.Order
	Err   error
}

// OpenOrders admits each request in order, stopping at nothing: one
// rejection does not affect the others. now seeds latency sampling and
// timestamps every event the admission path publishes.
func (c *Core) OpenOrders(reqs []order.Request, now int64) (results []OpenResult) {
	c.do(func() {
		results = make([]OpenResult, len(reqs))
		for i, req := range reqs {
			o, err := c.admission.Admit(req, now)
			results[i] = OpenResult{Order: o, Err: err}
			if err == nil && c.store != nil && o.Status == order.Open {
				if perr := c.store.SaveOrder(o); perr != nil {
					c.log.Warnw("persist open order failed", "err", perr, "cid", o.Cid)
				}
			}
		}
	})
	return
}

// CancelRequest identifies one resting order to cancel, either by client
// order id (Cid set, Side/Id ignored) or by instrument/side/exchange id.
type CancelRequest struct {
	Instrument common.Instrument
	Side       common.Side
	Cid        string
	Id         idgen.OrderId
}

// CancelResult pairs one CancelRequest with its outcome.
type CancelResult struct {
	Order *order.Order
	Err   error
}

// CancelOrders removes each requested order from its book and releases
// its balance reservation, reporting OrderNotFoundError for any cid or id
// that is not currently resting.
func (c *Core) CancelOrders(reqs []CancelRequest) (results []CancelResult) {
	c.do(func() {
		results = make([]CancelResult, len(reqs))
		for i, req := range reqs {
			results[i] = c.cancelOne(req)
		}
	})
	return
}

func (c *Core) cancelOne(req CancelRequest) CancelResult {
	book := c.books.For(req.Instrument)

	var o *order.Order
	var err error
	if req.Cid != "" {
		o, err = book.RemoveByCid(req.Cid)
	} else {
		o, err = book.RemoveByID(req.Side, req.Id)
	}
	if err != nil {
		return CancelResult{Err: err}
	}

	if _, _, rerr := c.ledger.ReleaseOnCancel(o.Instrument, o.Side, o.Price, o.Remaining()); rerr != nil {
		c.log.Warnw("release on cancel failed", "err", rerr, "cid", o.Cid)
	}
	o.Status = order.Cancelled

	if c.store != nil {
		if derr := c.store.DeleteOrder(o.Instrument, o.Side, o.Cid); derr != nil {
			c.log.Warnw("persist delete order failed", "err", derr, "cid", o.Cid)
		}
	}

	c.bus.Publish(events.Event{Exchange: o.Exchange, Kind: events.OrdersCancelled, Payload: o})
	if bal, berr := c.ledger.Balance(balance.ReservationToken(o.Instrument, o.Side)); berr == nil {
		c.bus.Publish(events.Event{Exchange: o.Exchange, Kind: events.BalanceEvent, Payload: bal})
	}

	return CancelResult{Order: o}
}

// CancelOrdersAll drains every instrument's book across both sides,
// releasing every outstanding reservation.
func (c *Core) CancelOrdersAll() (cancelled []*order.Order) {
	c.do(func() {
		for instrument, book := range c.books.All() {
			for _, o := range book.AllOpen() {
				res := c.cancelOne(CancelRequest{Instrument: instrument, Side: o.Side, Cid: o.Cid, Id: o.Id})
				if res.Order != nil {
					cancelled = append(cancelled, res.Order)
				}
			}
		}
	})
	return
}

// ConfigureInstruments replaces the fee schedule for one instrument kind,
// e.g. moving a commission-level upgrade into effect mid-run.
func (c *Core) ConfigureInstruments(kind common.InstrumentKind, fees config.Fees) {
	c.do(func() {
		c.cfg.FeesBook[kind] = fees
		c.bus.Publish(events.Event{Kind: events.AccountConfigEvent, Payload: fees})
	})
}

// DepositTokens credits each token in deposits by its paired amount and
// returns the resulting balances.
func (c *Core) DepositTokens(deposits map[common.Token]float64) (out map[common.Token]balance.Balance) {
	c.do(func() {
		out = make(map[common.Token]balance.Balance, len(deposits))
		for token, amount := range deposits {
			bal := c.ledger.Deposit(token, amount)
			out[token] = bal
			if c.store != nil {
				if perr := c.store.SaveBalance(token, bal); perr != nil {
					c.log.Warnw("persist deposit failed", "err", perr, "token", token)
				}
			}
		}
	})
	return
}

// LetItRoll pulls exactly one trade off the attached feed and runs it
// through the matcher. delivered is false once the feed is exhausted; err
// distinguishes a clean end-of-tape from a read failure.
func (c *Core) LetItRoll() (delivered bool, err error) {
	c.do(func() {
		if c.feed == nil {
			err = ErrNoFeedAttached
			return
		}
		trade, ok := c.feed.Next()
		if !ok {
			err = c.feed.Err()
			return
		}
		c.engine.OnTrade(trade)
		delivered = true
	})
	return
}

// LoadSnapshot restores balances, open positions, exited positions, and
// resting orders from the attached store, for resuming a paused run
// without replaying the tape from the start. It is a no-op if no store
// was supplied to New. Core writes to the store only when DepositTokens
// credits a balance, when OpenOrders rests an order, and when a cancel
// deletes one; reservations, fills, and positions are not written, so
// the restored state is the state as of those writes.
func (c *Core) LoadSnapshot() error {
	if c.store == nil {
		return nil
	}
	var loadErr error
	c.do(func() {
		balances, err := c.store.LoadBalances()
		if err != nil {
			loadErr = err
			return
		}
		for token, bal := range balances {
			c.ledger.Restore(token, bal)
		}

		openPositions, err := c.store.LoadOpenPositions()
		if err != nil {
			loadErr = err
			return
		}
		for _, pos := range openPositions {
			c.positions.Restore(pos)
		}

		exited, err := c.store.LoadExitedPositions()
		if err != nil {
			loadErr = err
			return
		}
		for _, pos := range exited {
			c.positions.RestoreExited(pos)
		}

		orders, err := c.store.LoadOpenOrders()
		if err != nil {
			loadErr = err
			return
		}
		for _, o := range orders {
			c.books.For(o.Instrument).Add(o)
		}
	})
	return loadErr
}
