package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/orellana-quant/backtest-account/pkg/common"
)

func writeTempToml(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "account.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg := Default()
	if cfg.MarginMode != SimpleMode {
		t.Fatalf("expected SimpleMode default, got %s", cfg.MarginMode)
	}
	if cfg.AccountLeverageRate < 1.0 {
		t.Fatalf("expected leverage >= 1.0, got %f", cfg.AccountLeverageRate)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeTempToml(t, `
margin_mode = "SingleCurrencyMargin"
position_mode = "LongShortMode"
position_margin_mode = "Isolated"
commission_level = "Lv3"
account_leverage_rate = 10.0
funding_rate = 0.0002

[current_commission_rate]
maker_fees = 0.0001
taker_fees = 0.0004

[fees_book.perpetual]
maker_fees = 0.0001
taker_fees = 0.0005

[fees_book.spot]
maker_fees = 0.0002
taker_fees = 0.0004
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MarginMode != SingleCurrencyMargin {
		t.Fatalf("expected SingleCurrencyMargin, got %s", cfg.MarginMode)
	}
	if cfg.PositionMode != LongShortMode {
		t.Fatalf("expected LongShortMode, got %s", cfg.PositionMode)
	}
	if cfg.AccountLeverageRate != 10.0 {
		t.Fatalf("expected leverage 10.0, got %f", cfg.AccountLeverageRate)
	}

	rate, err := cfg.FeesBook.RateFor(common.Perpetual, common.Maker)
	if err != nil {
		t.Fatalf("RateFor failed: %v", err)
	}
	if rate != 0.0001 {
		t.Fatalf("expected maker rate 0.0001, got %f", rate)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/account.toml"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLoadInvalidEnum(t *testing.T) {
	path := writeTempToml(t, `margin_mode = "NotAMode"`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error for invalid margin_mode")
	}
}
