// Package idgen builds the 64-bit composite identifiers used for orders,
// requests, and positions: a Snowflake-style packing of a millisecond
// timestamp with a machine identifier and a monotonic counter.
package idgen

import (
	"crypto/rand"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/orellana-quant/backtest-account/pkg/common"
)

type OrderId uint64
type RequestId uint64
type PositionId uint64

// IdGen holds the process-local machine identifier and monotonic counters.
// A single IdGen is constructed at process start and threaded into
// AccountCore and its collaborators.
type IdGen struct {
	machine      uint64
	orderCounter uint64
	reqCounter   uint64
}

func New() *IdGen {
	return &IdGen{machine: machineID()}
}

// NewOrderID packs [timestamp:41][machine:10][random:3][counter:10].
func (g *IdGen) NewOrderID() OrderId {
	now := uint64(time.Now().UnixMilli())
	counter := atomic.AddUint64(&g.orderCounter, 1) & 0x3FF
	random := randomUint64(8) & 0x7
	id := ((now & 0x1FFFFFFFFFF) << 23) |
		((g.machine & 0x3FF) << 13) |
		((random & 0x7) << 10) |
		counter
	return OrderId(id)
}

// NewRequestID packs [timestamp:41][machine:10][counter:12]; no random
// component, matching the request-id variant of the composite scheme.
func (g *IdGen) NewRequestID(ts int64) RequestId {
	counter := atomic.AddUint64(&g.reqCounter, 1) & 0xFFF
	id := ((uint64(ts) & 0x1FFFFFFFFFF) << 22) |
		((g.machine & 0x3FF) << 12) |
		counter
	return RequestId(id)
}

// NewPositionID packs (instrumentHash[32] | timestampSeconds[32]).
func (g *IdGen) NewPositionID(instrument common.Instrument, ts int64) PositionId {
	h := instrumentHash32(instrument)
	id := (uint64(h) << 32) | (uint64(ts) & 0xFFFFFFFF)
	return PositionId(id)
}

func randomUint64(bound int64) uint64 {
	n, err := rand.Int(rand.Reader, big.NewInt(bound))
	if err != nil {
		return 0
	}
	return n.Uint64()
}
