package config

import "github.com/orellana-quant/backtest-account/pkg/common"

// FeeRate is the maker/taker pair charged for a fill.
type FeeRate struct {
	MakerFees float64 `mapstructure:"maker_fees"`
	TakerFees float64 `mapstructure:"taker_fees"`
}

// Fees is a tagged union mirroring the original friction model: every
// instrument kind shares a maker/taker rate, but perpetual and future
// instruments additionally carry a funding fee component.
type Fees struct {
	Kind        common.InstrumentKind
	FeeRate     FeeRate
	FundingFee  float64
	HasFunding  bool
}

func SpotFees(rate FeeRate) Fees {
	return Fees{Kind: common.Spot, FeeRate: rate}
}

func PerpetualFees(rate FeeRate, funding float64) Fees {
	return Fees{Kind: common.Perpetual, FeeRate: rate, FundingFee: funding, HasFunding: true}
}

func FutureFees(rate FeeRate, funding float64) Fees {
	return Fees{Kind: common.Future, FeeRate: rate, FundingFee: funding, HasFunding: true}
}

func OptionFees(rate FeeRate) Fees {
	return Fees{Kind: common.CryptoOption, FeeRate: rate}
}

// FeesBook maps each instrument kind actually configured to its Fees.
type FeesBook map[common.InstrumentKind]Fees

func (b FeesBook) RateFor(kind common.InstrumentKind, role common.OrderRole) (float64, error) {
	fees, ok := b[kind]
	if !ok {
		return 0, &common.UnsupportedInstrumentKindError{Kind: kind}
	}
	if role == common.Maker {
		return fees.FeeRate.MakerFees, nil
	}
	return fees.FeeRate.TakerFees, nil
}
