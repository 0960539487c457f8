package idgen

import (
	"testing"

	"github.com/orellana-quant/backtest-account/pkg/common"
)

func TestNewOrderIDUnique(t *testing.T) {
	g := New()
	seen := make(map[OrderId]bool)
	for i := 0; i < 1000; i++ {
		id := g.NewOrderID()
		if seen[id] {
			t.Fatalf("duplicate order id generated: %d", id)
		}
		seen[id] = true
	}
}

func TestNewRequestIDMonotonic(t *testing.T) {
	g := New()
	ts := int64(1_700_000_000_000)
	prev := g.NewRequestID(ts)
	for i := 0; i < 100; i++ {
		id := g.NewRequestID(ts)
		if id <= prev {
			t.Fatalf("request id did not increase: prev=%d cur=%d", prev, id)
		}
		prev = id
	}
}

func TestNewPositionIDDeterministic(t *testing.T) {
	g := New()
	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)
	ts := int64(1625247600)

	a := g.NewPositionID(inst, ts)
	b := g.NewPositionID(inst, ts)
	if a != b {
		t.Fatalf("position id not deterministic for same instrument/timestamp: %d != %d", a, b)
	}
	if a == 0 {
		t.Fatalf("position id should not be zero")
	}

	other := common.NewInstrument("ETH", "USDT", common.Perpetual)
	if g.NewPositionID(other, ts) == a {
		t.Fatalf("different instruments collided in position id")
	}
}

func TestMachineIDNonZero(t *testing.T) {
	if machineID() == 0 {
		t.Fatalf("machine id should never be zero")
	}
}
