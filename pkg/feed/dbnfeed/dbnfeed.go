// Package dbnfeed adapts a Databento DBN trades file into the engine's
// feed.Source, mapping each Mbp0 trade record onto a match.MarketTrade.
package dbnfeed

import (
	"fmt"
	"io"

	dbn "github.com/NimbleMarkets/dbn-go"

	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/match"
)

// Source reads successive Mbp0 trade records from a raw DBN stream.
// Symbol resolution is by DBN instrument id; the caller supplies the
// exchange name and the mapping from instrument id to ticker symbol,
// since DBN trade records only carry the numeric id.
type Source struct {
	scanner    *dbn.DbnScanner
	exchange   string
	symbolByID map[uint32]string
	lastErr    error
	visitor    *tradeVisitor
	closer     io.Closer
}

// New wraps r as a feed.Source. symbolByID maps a DBN instrument id to
// the ticker symbol match.MarketTrade.ParseInstrument expects, e.g.
// 15144 -> "BTCUSDT". If r also implements io.Closer (e.g. an *os.File),
// Close releases it.
func New(r io.Reader, exchange string, symbolByID map[uint32]string) *Source {
	s := &Source{
		scanner:    dbn.NewDbnScanner(r),
		exchange:   exchange,
		symbolByID: symbolByID,
		visitor:    &tradeVisitor{},
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *Source) Next() (match.MarketTrade, bool) {
	for s.scanner.Next() {
		s.visitor.trade = match.MarketTrade{}
		s.visitor.ok = false
		if err := s.scanner.Visit(s.visitor); err != nil {
			s.lastErr = fmt.Errorf("dbnfeed: visit record: %w", err)
			return match.MarketTrade{}, false
		}
		if !s.visitor.ok {
			continue // non-trade record (quote, statistics, system message, ...)
		}
		t := s.visitor.trade
		t.Exchange = s.exchange
		if sym, ok := s.symbolByID[s.visitor.instrumentID]; ok {
			t.Symbol = sym
		}
		return t, true
	}
	s.lastErr = s.scanner.Error()
	if s.lastErr == io.EOF {
		s.lastErr = nil
	}
	return match.MarketTrade{}, false
}

func (s *Source) Err() error { return s.lastErr }

func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// tradeVisitor implements dbn.Visitor, translating only Mbp0 trade
// records (the Trades schema) and ignoring every other record type.
type tradeVisitor struct {
	dbn.NullVisitor
	trade        match.MarketTrade
	instrumentID uint32
	ok           bool
}

// DBN price is a fixed-point int64 scaled by 1e9 and is rescaled here at
// the ingestion boundary; DBN size is in whole units of the raw venue lot
// size and is only converted to the engine's float quantity, not rescaled.
const dbnPriceScale = 1e9

func (v *tradeVisitor) OnMbp0(record *dbn.Mbp0) error {
	if record.Action != dbn.Action_Trade {
		return nil
	}
	side := common.Buy
	if record.Side == dbn.Side_Ask {
		side = common.Sell
	}
	v.instrumentID = record.Header.InstrumentID
	v.trade = match.MarketTrade{
		Side:      side,
		Price:     float64(record.Price) / dbnPriceScale,
		Timestamp: int64(record.TsRecv / 1_000_000), // ns -> ms
		Amount:    float64(record.Size),
	}
	v.ok = true
	return nil
}
