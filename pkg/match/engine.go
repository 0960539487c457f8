package match

import (
	"go.uber.org/zap"

	"github.com/orellana-quant/backtest-account/pkg/balance"
	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/config"
	"github.com/orellana-quant/backtest-account/pkg/events"
	"github.com/orellana-quant/backtest-account/pkg/order"
	"github.com/orellana-quant/backtest-account/pkg/orderbook"
	"github.com/orellana-quant/backtest-account/pkg/position"
)

// Engine is the Matcher (C9): it drives each instrument's resting order
// book against incoming MarketTrade prints, producing ClientTrade fills
// with maker/taker fee accounting, and tracks the last traded price per
// instrument for position mark-to-market and admission-time reference
// pricing.
type Engine struct {
	books     *orderbook.Set
	ledger    *balance.Ledger
	positions *position.Book
	fees      config.FeesBook
	bus       *events.Bus
	log       *zap.SugaredLogger

	lastPrice map[common.Instrument]float64
}

func NewEngine(books *orderbook.Set, ledger *balance.Ledger, positions *position.Book, fees config.FeesBook, bus *events.Bus, log *zap.SugaredLogger) *Engine {
	return &Engine{
		books:     books,
		ledger:    ledger,
		positions: positions,
		fees:      fees,
		bus:       bus,
		log:       log,
		lastPrice: make(map[common.Instrument]float64),
	}
}

func (e *Engine) Books() *orderbook.Set { return e.books }

func (e *Engine) LastPrice(instrument common.Instrument) (float64, bool) {
	p, ok := e.lastPrice[instrument]
	return p, ok
}

// OnTrade mutates book/ledger/position state for every resting order the
// trade crosses and publishes the resulting events in the fixed order
// the ordering guarantees require: order-state event, then balance, then
// trade, then position, per fill, before the next fill is processed.
func (e *Engine) OnTrade(trade MarketTrade) {
	if trade.Amount <= 0 {
		return
	}
	instrument, ok := trade.ParseInstrument()
	if !ok {
		e.log.Warnw("unparseable trade symbol", "symbol", trade.Symbol, "exchange", trade.Exchange)
		return
	}

	book := e.books.For(instrument)
	bookSide := common.Sell
	if trade.Side == common.Sell {
		bookSide = common.Buy
	}

	remaining := trade.Amount
	for remaining > 0 {
		o, ok := book.Front(bookSide)
		if !ok {
			break
		}
		if !crosses(bookSide, o.Price, trade.Price) {
			break
		}

		fill := min(remaining, o.Remaining())
		rate, err := e.fees.RateFor(instrument.Kind, o.Role)
		if err != nil {
			e.log.Warnw("fee lookup miss, skipping fill", "instrument", instrument, "role", o.Role, "err", err)
			break
		}
		fee := fill * trade.Price * rate
		tradeId := book.NextTradeId()

		fullyFilled := fill >= o.Remaining()-1e-12
		if fullyFilled {
			book.PopFront(bookSide)
			o.FilledQty = o.Size
			o.Status = order.FullyFill
			e.bus.Publish(events.Event{ExchangeTs: trade.Timestamp, Exchange: trade.Exchange, Kind: events.OrdersFilled, Payload: o})
		} else {
			o.FilledQty += fill
			o.Status = order.PartialFill
			e.bus.Publish(events.Event{ExchangeTs: trade.Timestamp, Exchange: trade.Exchange, Kind: events.OrdersPartiallyFilled, Payload: o})
		}

		baseBal, quoteBal, err := e.ledger.ApplyTrade(instrument, o.Side, trade.Price, fill, fee)
		if err != nil {
			e.log.Warnw("balance application failed mid-match", "err", err)
		} else {
			e.bus.Publish(events.Event{ExchangeTs: trade.Timestamp, Exchange: trade.Exchange, Kind: events.BalancesEvent, Payload: []balance.Balance{baseBal, quoteBal}})
		}

		ct := ClientTrade{
			Exchange:   trade.Exchange,
			Timestamp:  trade.Timestamp,
			TradeId:    tradeId,
			OrderId:    o.Id,
			Cid:        o.Cid,
			Instrument: instrument,
			Side:       o.Side,
			Price:      trade.Price,
			Size:       fill,
			Fees:       fee,
		}
		e.bus.Publish(events.Event{ExchangeTs: trade.Timestamp, Exchange: trade.Exchange, Kind: events.TradeEvent, Payload: ct})

		pos, _ := e.positions.OpenOrUpdate(instrument, instrument.Kind, o.Side, trade.Price, fill, fee, trade.Timestamp)
		e.bus.Publish(events.Event{ExchangeTs: trade.Timestamp, Exchange: trade.Exchange, Kind: events.PositionsEvent, Payload: pos})

		remaining -= fill
	}

	e.lastPrice[instrument] = trade.Price
	e.positions.UpdatePrices(instrument, trade.Price)
}

func crosses(bookSide common.Side, orderPrice, tradePrice float64) bool {
	if bookSide == common.Sell {
		return orderPrice <= tradePrice
	}
	return orderPrice >= tradePrice
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
