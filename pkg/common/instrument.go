package common

import "fmt"

// InstrumentKind distinguishes the product families an Instrument can name.
type InstrumentKind int8

const (
	Spot InstrumentKind = iota
	Perpetual
	Future
	CryptoOption
	CryptoLeveragedToken
	CommodityFuture
	CommodityOption
)

func (k InstrumentKind) String() string {
	switch k {
	case Spot:
		return "spot"
	case Perpetual:
		return "perpetual"
	case Future:
		return "future"
	case CryptoOption:
		return "option"
	case CryptoLeveragedToken:
		return "margin"
	case CommodityFuture:
		return "commodity_future"
	case CommodityOption:
		return "commodity_option"
	default:
		return "unknown"
	}
}

// HasLeverage reports whether positions in this instrument kind carry margin,
// leverage, and a liquidation price (as opposed to a spot balance swap).
func (k InstrumentKind) HasLeverage() bool {
	switch k {
	case Perpetual, Future, CommodityFuture, CryptoLeveragedToken:
		return true
	default:
		return false
	}
}

// Instrument identifies a tradable base/quote pair of a given kind. Hashable
// via the zero-value-comparable struct, so it can be used directly as a map key.
type Instrument struct {
	Base  Token
	Quote Token
	Kind  InstrumentKind
}

func NewInstrument(base, quote string, kind InstrumentKind) Instrument {
	return Instrument{Base: NewToken(base), Quote: NewToken(quote), Kind: kind}
}

func (i Instrument) String() string {
	return fmt.Sprintf("%s-%s-%s", i.Base, i.Quote, i.Kind)
}

func (i Instrument) Symbol() string {
	return fmt.Sprintf("%s%s", i.Base, i.Quote)
}
