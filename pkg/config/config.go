// Package config loads per-account trading parameters from a TOML file,
// layered with environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/latency"
)

// Config is the per-account configuration: margin mode, position-direction
// mode, leverage, commission tier, per-kind fee schedule, and the simulated
// order-activation latency model.
type Config struct {
	MarginMode          MarginMode
	PositionMode        PositionMode
	PositionMarginMode  PositionMarginMode
	CommissionLevel     CommissionLevel
	CurrentCommission   FeeRate
	AccountLeverageRate float64
	FeesBook            FeesBook
	FundingRate         float64
	LatencyMode         latency.Mode
	LatencyMinMs        int64
	LatencyMaxMs        int64
}

// rawConfig mirrors the TOML schema before enum/fees-book decoding.
type rawConfig struct {
	MarginMode          string             `mapstructure:"margin_mode"`
	PositionMode        string             `mapstructure:"position_mode"`
	PositionMarginMode  string             `mapstructure:"position_margin_mode"`
	CommissionLevel     string             `mapstructure:"commission_level"`
	CurrentCommission   FeeRate            `mapstructure:"current_commission_rate"`
	AccountLeverageRate float64            `mapstructure:"account_leverage_rate"`
	FeesBook            map[string]FeeRate `mapstructure:"fees_book"`
	FundingRate         float64            `mapstructure:"funding_rate"`
	LatencyMode         string             `mapstructure:"latency_mode"`
	LatencyMinMs        int64              `mapstructure:"latency_min_ms"`
	LatencyMaxMs        int64              `mapstructure:"latency_max_ms"`
}

func Default() Config {
	return Config{
		MarginMode:          SimpleMode,
		PositionMode:        NetMode,
		PositionMarginMode:  Cross,
		CommissionLevel:     Lv1,
		CurrentCommission:   FeeRate{MakerFees: 0.0002, TakerFees: 0.0005},
		AccountLeverageRate: 1.0,
		FeesBook: FeesBook{
			common.Spot:      SpotFees(FeeRate{MakerFees: 0.0002, TakerFees: 0.0004}),
			common.Perpetual: PerpetualFees(FeeRate{MakerFees: 0.0002, TakerFees: 0.0005}, 0.0001),
		},
		FundingRate:  0.0001,
		LatencyMode:  latency.Uniform,
		LatencyMinMs: 5,
		LatencyMaxMs: 150,
	}
}

// Load reads the TOML file at path with viper, then layers ENV > .env file
// > defaults on top, mirroring the layering the account manager's
// LoadFromEnv uses for node parameters.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}

		v := viper.New()
		v.SetConfigFile(path)
		v.SetEnvPrefix("ACCOUNT")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}

		var raw rawConfig
		if err := v.Unmarshal(&raw); err != nil {
			return Config{}, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}

		decoded, err := decode(raw)
		if err != nil {
			return Config{}, err
		}
		cfg = decoded
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func decode(raw rawConfig) (Config, error) {
	var cfg Config
	var err error

	if cfg.MarginMode, err = ParseMarginMode(raw.MarginMode); err != nil {
		return Config{}, err
	}
	if cfg.PositionMode, err = ParsePositionMode(raw.PositionMode); err != nil {
		return Config{}, err
	}
	if cfg.PositionMarginMode, err = ParsePositionMarginMode(raw.PositionMarginMode); err != nil {
		return Config{}, err
	}
	if cfg.CommissionLevel, err = ParseCommissionLevel(raw.CommissionLevel); err != nil {
		return Config{}, err
	}
	cfg.CurrentCommission = raw.CurrentCommission
	cfg.AccountLeverageRate = raw.AccountLeverageRate
	cfg.FundingRate = raw.FundingRate

	cfg.LatencyMode, cfg.LatencyMinMs, cfg.LatencyMaxMs = latency.Uniform, int64(5), int64(150)
	if raw.LatencyMode != "" {
		if cfg.LatencyMode, err = ParseLatencyMode(raw.LatencyMode); err != nil {
			return Config{}, err
		}
	}
	if raw.LatencyMinMs != 0 || raw.LatencyMaxMs != 0 {
		cfg.LatencyMinMs = raw.LatencyMinMs
		cfg.LatencyMaxMs = raw.LatencyMaxMs
	}

	cfg.FeesBook = make(FeesBook, len(raw.FeesBook))
	for kindStr, rate := range raw.FeesBook {
		kind, err := parseInstrumentKind(kindStr)
		if err != nil {
			return Config{}, err
		}
		switch kind {
		case common.Perpetual, common.Future:
			cfg.FeesBook[kind] = Fees{Kind: kind, FeeRate: rate, FundingFee: raw.FundingRate, HasFunding: true}
		default:
			cfg.FeesBook[kind] = Fees{Kind: kind, FeeRate: rate}
		}
	}

	return cfg, nil
}

func parseInstrumentKind(s string) (common.InstrumentKind, error) {
	switch s {
	case "spot":
		return common.Spot, nil
	case "perpetual":
		return common.Perpetual, nil
	case "future":
		return common.Future, nil
	case "option":
		return common.CryptoOption, nil
	case "margin":
		return common.CryptoLeveragedToken, nil
	case "commodity_future":
		return common.CommodityFuture, nil
	case "commodity_option":
		return common.CommodityOption, nil
	default:
		return 0, fmt.Errorf("%w: unknown instrument kind %q in fees_book", ErrConfigParse, s)
	}
}

// applyEnvOverrides layers ENV > .env file > defaults/file, the same
// priority order the node-level config layers env vars over file defaults.
func applyEnvOverrides(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("ACCOUNT_LEVERAGE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.AccountLeverageRate = f
		}
	}
	if v := os.Getenv("ACCOUNT_FUNDING_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.FundingRate = f
		}
	}
	if v := os.Getenv("ACCOUNT_MARGIN_MODE"); v != "" {
		if m, err := ParseMarginMode(v); err == nil {
			cfg.MarginMode = m
		}
	}
	if v := os.Getenv("ACCOUNT_POSITION_MODE"); v != "" {
		if m, err := ParsePositionMode(v); err == nil {
			cfg.PositionMode = m
		}
	}
}
