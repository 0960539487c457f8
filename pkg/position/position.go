// Package position tracks open and closed positions per instrument and
// side, with running-average cost basis, PnL, and liquidation pricing.
package position

import (
	"github.com/orellana-quant/backtest-account/pkg/balance"
	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
)

// Meta is the bookkeeping shared by every position kind, named and shaped
// after the original's running-average fields.
type Meta struct {
	PositionId           idgen.PositionId
	EnterTs              int64
	UpdateTs             int64
	ExitBalance          balance.Balance
	Exchange             string
	Instrument           common.Instrument
	Side                 common.Side
	CurrentSize          float64
	CurrentFeesTotal     float64
	CurrentAvgPriceGross float64
	CurrentSymbolPrice   float64
	CurrentAvgPrice      float64
	UnrealisedPnl        float64
	RealisedPnl          float64
}

// DirectionMode governs whether an instrument may hold simultaneous long
// and short positions.
type DirectionMode int8

const (
	NetMode DirectionMode = iota
	LongShortMode
)

// MarginMode is the per-position margin allocation scheme.
type MarginMode int8

const (
	Cross MarginMode = iota
	Isolated
)

// Position is a tagged union over the four leveraged/metadata-bearing
// kinds: Perpetual, Future, Option, and LeveragedToken share Meta; only
// Perpetual and Future carry margin/leverage/liquidation fields.
type Position struct {
	Kind                  common.InstrumentKind
	Meta                  Meta
	PosMarginMode         MarginMode
	Leverage              float64
	PositionDirectionMode DirectionMode
	LiquidationPrice      float64
	IsolatedMargin        float64
	HasIsolatedMargin     bool
	FundingFee            float64
	HasFunding            bool
}

func (p *Position) HasLeverage() bool {
	return p.Kind.HasLeverage()
}

// UpdateAvgPrice folds a new fill into the running average, per the
// weighted-average algorithm: avg_gross' = (avg_gross*size + price*tradeSize)
// / (size+tradeSize). Fees accumulate into CurrentFeesTotal, then
// CurrentAvgPrice is derived by spreading that cumulative fee total back
// over the gross average: avg = (avg_gross*size + fees_total) / size. This
// is what makes CurrentAvgPrice the fee-adjusted figure and
// CurrentAvgPriceGross the unadjusted one, instead of the two tracking
// identically.
func (m *Meta) UpdateAvgPrice(tradePrice, tradeSize, fee float64) {
	totalSize := m.CurrentSize + tradeSize
	if totalSize > 0 {
		m.CurrentAvgPriceGross = (m.CurrentAvgPriceGross*m.CurrentSize + tradePrice*tradeSize) / totalSize
	}
	m.CurrentSize = totalSize
	m.CurrentFeesTotal += fee
	if m.CurrentSize > 0 {
		m.CurrentAvgPrice = (m.CurrentAvgPriceGross*m.CurrentSize + m.CurrentFeesTotal) / m.CurrentSize
	} else {
		m.CurrentAvgPrice = m.CurrentAvgPriceGross
	}
}

// UpdateSymbolPrice recomputes unrealised PnL against the latest mark.
func (m *Meta) UpdateSymbolPrice(price float64) {
	m.CurrentSymbolPrice = price
	m.UpdateUnrealisedPnl()
}

func (m *Meta) UpdateUnrealisedPnl() {
	direction := 1.0
	if m.Side == common.Sell {
		direction = -1.0
	}
	m.UnrealisedPnl = (m.CurrentSymbolPrice - m.CurrentAvgPrice) * m.CurrentSize * direction
}

// ReduceAndMaybeClose reduces current size by closedSize and, if the
// position has fully unwound, finalises realised PnL and returns true to
// signal the caller should archive it.
func (m *Meta) ReduceAndMaybeClose(closedSize, exitPrice float64) (closed bool) {
	direction := 1.0
	if m.Side == common.Sell {
		direction = -1.0
	}
	m.RealisedPnl += (exitPrice - m.CurrentAvgPrice) * closedSize * direction
	m.CurrentSize -= closedSize
	if m.CurrentSize <= 1e-12 {
		m.CurrentSize = 0
		m.CurrentAvgPrice = 0
		m.CurrentAvgPriceGross = 0
		return true
	}
	return false
}

// LiquidationPrice computes the isolated-margin liquidation price:
// entry_price * (1 ∓ initial_margin/notional), sign depending on side.
func LiquidationPrice(entryPrice, initialMargin, notional float64, side common.Side) float64 {
	if notional == 0 {
		return 0
	}
	ratio := initialMargin / notional
	if side == common.Buy {
		return entryPrice * (1 - ratio)
	}
	return entryPrice * (1 + ratio)
}
