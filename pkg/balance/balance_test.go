package balance

import (
	"errors"
	"testing"

	"github.com/orellana-quant/backtest-account/pkg/common"
)

func TestUnknownToken(t *testing.T) {
	l := NewLedger()
	_, err := l.Balance(common.NewToken("usdt"))
	var unknown *common.UnknownTokenError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownTokenError, got %v", err)
	}
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	l := NewLedger()
	usdt := common.NewToken("USDT")
	l.Deposit(usdt, 20_000)

	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)
	token, _, err := l.ReserveForOpen(inst, common.Buy, 16_499, 1)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if token != usdt {
		t.Fatalf("expected reservation token USDT, got %s", token)
	}

	b, _ := l.Balance(usdt)
	if b.Total != 20_000 || b.Available != 3_501 {
		t.Fatalf("unexpected balance after reserve: %+v", b)
	}

	if _, _, err := l.ReleaseOnCancel(inst, common.Buy, 16_499, 1); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	b, _ = l.Balance(usdt)
	if b.Total != 20_000 || b.Available != 20_000 {
		t.Fatalf("expected full restore, got %+v", b)
	}
}

func TestReserveInsufficientBalance(t *testing.T) {
	l := NewLedger()
	usdt := common.NewToken("USDT")
	l.Deposit(usdt, 100)

	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)
	_, _, err := l.ReserveForOpen(inst, common.Buy, 16_499, 1)
	var insufficient *common.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}

	b, _ := l.Balance(usdt)
	if b.Total != 100 || b.Available != 100 {
		t.Fatalf("rejected reservation must not mutate balance, got %+v", b)
	}
}

func TestApplyTradeFeeDeductedInReceivedAsset(t *testing.T) {
	l := NewLedger()
	usdt := common.NewToken("USDT")
	btc := common.NewToken("BTC")
	l.Deposit(usdt, 20_000)

	inst := common.NewInstrument("BTC", "USDT", common.Perpetual)
	if _, _, err := l.ReserveForOpen(inst, common.Buy, 100, 1); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	baseBal, quoteBal, err := l.ApplyTrade(inst, common.Buy, 100, 1, 0.05)
	if err != nil {
		t.Fatalf("apply trade failed: %v", err)
	}
	if baseBal.Total != 0.95 || baseBal.Available != 0.95 {
		t.Fatalf("unexpected base balance: %+v", baseBal)
	}
	if quoteBal.Total != 19_900 || quoteBal.Available != 19_900 {
		t.Fatalf("unexpected quote balance: %+v", quoteBal)
	}

	btcBal, _ := l.Balance(btc)
	if btcBal != baseBal {
		t.Fatalf("expected base token balance to be BTC entry")
	}
}
