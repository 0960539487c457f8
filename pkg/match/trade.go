// Package match drives an instrument's order book against an incoming
// stream of market trades, producing fills with maker/taker fee
// accounting.
package match

import (
	"strings"

	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
)

// quoteSuffixes is the fixed priority list of quote-token suffixes used to
// split a trade symbol into (base, quote). Order matters: longer/more
// specific suffixes are tried first so e.g. "BUSD" is preferred over a
// spurious "USD" tail match.
var quoteSuffixes = []string{
	"FDUSD", "USDT", "USDC", "BUSD", "TUSD", "GUSD", "FRAX", "USDN", "EURT",
	"UST", "DAI", "USD", "BTC", "ETH",
}

// MarketTrade is one print from the historical feed.
type MarketTrade struct {
	Exchange  string
	Symbol    string
	Side      common.Side
	Price     float64
	Timestamp int64
	Amount    float64
}

// ParseInstrument splits Symbol into an Instrument using the fixed
// quote-suffix priority list, inferring Kind from the exchange suffix: a
// "-futures" exchange name yields Perpetual, anything else yields Spot.
// This is a deliberately crude heuristic carried over unchanged — see the
// instrument-kind inference caveat on genuine dated futures.
func (t MarketTrade) ParseInstrument() (common.Instrument, bool) {
	symbol := strings.ToUpper(t.Symbol)
	for _, suffix := range quoteSuffixes {
		if strings.HasSuffix(symbol, suffix) && len(symbol) > len(suffix) {
			base := symbol[:len(symbol)-len(suffix)]
			kind := common.Spot
			if strings.HasSuffix(strings.ToLower(t.Exchange), "-futures") {
				kind = common.Perpetual
			}
			return common.NewInstrument(base, suffix, kind), true
		}
	}
	return common.Instrument{}, false
}

// ClientTrade is a single fill produced by the matcher against the
// client's resting order.
type ClientTrade struct {
	Exchange   string
	Timestamp  int64
	TradeId    uint64
	OrderId    idgen.OrderId
	Cid        string
	Instrument common.Instrument
	Side       common.Side
	Price      float64
	Size       float64
	Fees       float64
}
