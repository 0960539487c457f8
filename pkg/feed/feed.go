// Package feed defines the historical trade-tape source the engine
// replays through LetItRoll, plus adapters that translate a concrete
// market-data format into the engine's MarketTrade shape.
package feed

import "github.com/orellana-quant/backtest-account/pkg/match"

// Source yields one historical trade at a time, in increasing timestamp
// order. Next returns false once the tape is exhausted; a non-nil error
// from Err indicates the tape ended early because of a read failure
// rather than running out of data.
type Source interface {
	Next() (match.MarketTrade, bool)
	Err() error
	Close() error
}
