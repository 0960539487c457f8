package orderbook

import (
	"testing"

	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
	"github.com/orellana-quant/backtest-account/pkg/order"
)

func mkOrder(id uint64, side common.Side, price float64) *order.Order {
	return &order.Order{
		Id:     idgen.OrderId(id),
		Side:   side,
		Price:  price,
		Size:   1,
		Status: order.Open,
	}
}

func TestAddMaintainsPriceTimePriority(t *testing.T) {
	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)
	b := New(inst)

	b.Add(mkOrder(1, common.Buy, 100))
	b.Add(mkOrder(2, common.Buy, 102))
	b.Add(mkOrder(3, common.Buy, 101))
	b.Add(mkOrder(4, common.Buy, 102)) // ties with #2, must come after it

	if !b.IsOrdered(common.Buy) {
		t.Fatalf("bids not ordered")
	}
	snap := b.Snapshot(common.Buy)
	if snap[0].Price != 102 || snap[0].Id != idgen.OrderId(2) {
		t.Fatalf("expected order 2 first, got %v", snap[0])
	}
	if snap[1].Id != idgen.OrderId(4) {
		t.Fatalf("expected tie broken by insertion order, got %v", snap[1])
	}

	b.Add(mkOrder(5, common.Sell, 105))
	b.Add(mkOrder(6, common.Sell, 103))
	if !b.IsOrdered(common.Sell) {
		t.Fatalf("asks not ordered")
	}
	askSnap := b.Snapshot(common.Sell)
	if askSnap[0].Price != 103 {
		t.Fatalf("expected lowest ask first, got %v", askSnap[0])
	}
}

func TestRemoveByID(t *testing.T) {
	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)
	b := New(inst)
	b.Add(mkOrder(1, common.Buy, 100))
	b.Add(mkOrder(2, common.Buy, 101))

	removed, err := b.RemoveByID(common.Buy, idgen.OrderId(1))
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if removed.Id != idgen.OrderId(1) {
		t.Fatalf("removed wrong order")
	}
	if len(b.Snapshot(common.Buy)) != 1 {
		t.Fatalf("expected one order left")
	}

	if _, err := b.RemoveByID(common.Buy, idgen.OrderId(999)); err == nil {
		t.Fatalf("expected OrderNotFoundError for unknown id")
	}
}

func TestBestAndPopFront(t *testing.T) {
	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)
	b := New(inst)
	if _, ok := b.Best(common.Sell); ok {
		t.Fatalf("expected no best on empty book")
	}

	b.Add(mkOrder(1, common.Sell, 100))
	b.Add(mkOrder(2, common.Sell, 99))

	best, ok := b.Best(common.Sell)
	if !ok || best.Price != 99 {
		t.Fatalf("expected best ask 99, got %+v", best)
	}

	popped, ok := b.PopFront(common.Sell)
	if !ok || popped.Price != 99 {
		t.Fatalf("expected pop of lowest ask")
	}
	if len(b.Snapshot(common.Sell)) != 1 {
		t.Fatalf("expected one order remaining after pop")
	}
}
