package config

import (
	"fmt"

	"github.com/orellana-quant/backtest-account/pkg/latency"
)

// MarginMode is the account-wide margin accounting scheme.
type MarginMode int8

const (
	SimpleMode MarginMode = iota
	SingleCurrencyMargin
	MultiCurrencyMargin
	PortfolioMargin
)

func (m MarginMode) String() string {
	switch m {
	case SimpleMode:
		return "SimpleMode"
	case SingleCurrencyMargin:
		return "SingleCurrencyMargin"
	case MultiCurrencyMargin:
		return "MultiCurrencyMargin"
	case PortfolioMargin:
		return "PortfolioMargin"
	default:
		return "Unknown"
	}
}

func ParseMarginMode(s string) (MarginMode, error) {
	switch s {
	case "SimpleMode":
		return SimpleMode, nil
	case "SingleCurrencyMargin":
		return SingleCurrencyMargin, nil
	case "MultiCurrencyMargin":
		return MultiCurrencyMargin, nil
	case "PortfolioMargin":
		return PortfolioMargin, nil
	default:
		return 0, fmt.Errorf("%w: unknown margin_mode %q", ErrConfigParse, s)
	}
}

// PositionMode governs whether an instrument may hold simultaneous long and
// short positions (LongShortMode) or only one directional position (NetMode).
type PositionMode int8

const (
	NetMode PositionMode = iota
	LongShortMode
)

func (m PositionMode) String() string {
	if m == NetMode {
		return "NetMode"
	}
	return "LongShortMode"
}

func ParsePositionMode(s string) (PositionMode, error) {
	switch s {
	case "NetMode":
		return NetMode, nil
	case "LongShortMode":
		return LongShortMode, nil
	default:
		return 0, fmt.Errorf("%w: unknown position_mode %q", ErrConfigParse, s)
	}
}

// PositionMarginMode governs whether margin is pooled across positions
// (Cross) or confined to each position individually (Isolated).
type PositionMarginMode int8

const (
	Cross PositionMarginMode = iota
	Isolated
)

func (m PositionMarginMode) String() string {
	if m == Cross {
		return "Cross"
	}
	return "Isolated"
}

func ParsePositionMarginMode(s string) (PositionMarginMode, error) {
	switch s {
	case "Cross":
		return Cross, nil
	case "Isolated":
		return Isolated, nil
	default:
		return 0, fmt.Errorf("%w: unknown position_margin_mode %q", ErrConfigParse, s)
	}
}

// CommissionLevel is the account's VIP/volume tier, Lv1 (lowest) through Lv5.
type CommissionLevel int8

const (
	Lv1 CommissionLevel = iota + 1
	Lv2
	Lv3
	Lv4
	Lv5
)

func (l CommissionLevel) String() string {
	return fmt.Sprintf("Lv%d", int(l))
}

// ParseLatencyMode maps a latency_mode config string onto latency.Mode.
func ParseLatencyMode(s string) (latency.Mode, error) {
	switch s {
	case "sine":
		return latency.Sine, nil
	case "cosine":
		return latency.Cosine, nil
	case "normal_distribution":
		return latency.NormalDistribution, nil
	case "uniform":
		return latency.Uniform, nil
	default:
		return 0, fmt.Errorf("%w: unknown latency_mode %q", ErrConfigParse, s)
	}
}

func ParseCommissionLevel(s string) (CommissionLevel, error) {
	switch s {
	case "Lv1":
		return Lv1, nil
	case "Lv2":
		return Lv2, nil
	case "Lv3":
		return Lv3, nil
	case "Lv4":
		return Lv4, nil
	case "Lv5":
		return Lv5, nil
	default:
		return 0, fmt.Errorf("%w: unknown commission_level %q", ErrConfigParse, s)
	}
}
