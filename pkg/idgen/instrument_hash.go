package idgen

import (
	"golang.org/x/crypto/blake2b"

	"github.com/orellana-quant/backtest-account/pkg/common"
)

// instrumentHash32 hashes (base, quote, kind) into the 32-bit instrument
// component of a PositionId, replacing the original's DefaultHasher over the
// same three fields with a Blake2b digest truncated to 32 bits.
func instrumentHash32(i common.Instrument) uint32 {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(i.Base))
	h.Write([]byte(i.Quote))
	h.Write([]byte{byte(i.Kind)})
	sum := h.Sum(nil)
	return uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])
}
