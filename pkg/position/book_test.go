package position

import (
	"testing"

	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
)

func TestOpenThenExtendAveragesPrice(t *testing.T) {
	b := NewBook(NetMode, idgen.New())
	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)

	pos, closed := b.OpenOrUpdate(inst, common.Perpetual, common.Buy, 100, 1, 0, 1000)
	if closed != nil {
		t.Fatalf("did not expect a close on first fill")
	}
	if pos.Meta.CurrentSize != 1 || pos.Meta.CurrentAvgPrice != 100 {
		t.Fatalf("unexpected position after open: %+v", pos.Meta)
	}

	pos, closed = b.OpenOrUpdate(inst, common.Perpetual, common.Buy, 200, 1, 0, 1001)
	if closed != nil {
		t.Fatalf("did not expect a close on extend")
	}
	if pos.Meta.CurrentSize != 2 || pos.Meta.CurrentAvgPrice != 150 {
		t.Fatalf("expected averaged price 150 size 2, got %+v", pos.Meta)
	}
}

func TestAvgPriceFoldsInFeesSeparatelyFromGross(t *testing.T) {
	b := NewBook(NetMode, idgen.New())
	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)

	pos, _ := b.OpenOrUpdate(inst, common.Perpetual, common.Buy, 100, 2, 4, 1000)
	if pos.Meta.CurrentAvgPriceGross != 100 {
		t.Fatalf("expected gross average unaffected by fees, got %f", pos.Meta.CurrentAvgPriceGross)
	}
	if pos.Meta.CurrentFeesTotal != 4 {
		t.Fatalf("expected fees total 4, got %f", pos.Meta.CurrentFeesTotal)
	}
	wantAvg := (100.0*2 + 4) / 2
	if pos.Meta.CurrentAvgPrice != wantAvg {
		t.Fatalf("expected fee-adjusted average %f, got %f", wantAvg, pos.Meta.CurrentAvgPrice)
	}
	if pos.Meta.CurrentAvgPrice == pos.Meta.CurrentAvgPriceGross {
		t.Fatalf("fee-adjusted average must diverge from gross once fees are nonzero")
	}
}

func TestOpposingFillReducesThenCloses(t *testing.T) {
	b := NewBook(NetMode, idgen.New())
	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)

	b.OpenOrUpdate(inst, common.Perpetual, common.Buy, 100, 2, 0, 1000)

	_, closed := b.OpenOrUpdate(inst, common.Perpetual, common.Sell, 110, 1, 0, 1001)
	if closed != nil {
		t.Fatalf("partial reduce should not close, got %+v", closed)
	}
	if b.HasPosition(inst, common.Buy) == false {
		t.Fatalf("expected long position to remain after partial reduce")
	}
	pos, _ := b.Get(inst, common.Buy)
	if pos.Meta.CurrentSize != 1 {
		t.Fatalf("expected size 1 after partial reduce, got %f", pos.Meta.CurrentSize)
	}
	if pos.Meta.RealisedPnl != 10 {
		t.Fatalf("expected realised pnl 10 (110-100)*1, got %f", pos.Meta.RealisedPnl)
	}

	_, closed = b.OpenOrUpdate(inst, common.Perpetual, common.Sell, 120, 1, 0, 1002)
	if closed == nil {
		t.Fatalf("expected full close on second reduce")
	}
	if b.HasPosition(inst, common.Buy) {
		t.Fatalf("position should be gone after full close")
	}
	if _, ok := b.Exited()[closed.Meta.PositionId]; !ok {
		t.Fatalf("closed position should be archived")
	}
}

func TestLiquidationPrice(t *testing.T) {
	lp := LiquidationPrice(100, 10, 1000, common.Buy)
	if lp != 99 {
		t.Fatalf("expected liquidation price 99, got %f", lp)
	}
	lp = LiquidationPrice(100, 10, 1000, common.Sell)
	if lp != 101 {
		t.Fatalf("expected liquidation price 101, got %f", lp)
	}
}
