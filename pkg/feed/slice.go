package feed

import "github.com/orellana-quant/backtest-account/pkg/match"

// SliceSource replays an in-memory slice of trades, for tests and for
// tapes small enough to load wholesale.
type SliceSource struct {
	trades []match.MarketTrade
	pos    int
}

func NewSliceSource(trades []match.MarketTrade) *SliceSource {
	return &SliceSource{trades: trades}
}

func (s *SliceSource) Next() (match.MarketTrade, bool) {
	if s.pos >= len(s.trades) {
		return match.MarketTrade{}, false
	}
	t := s.trades[s.pos]
	s.pos++
	return t, true
}

func (s *SliceSource) Err() error   { return nil }
func (s *SliceSource) Close() error { return nil }
