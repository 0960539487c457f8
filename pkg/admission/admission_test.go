package admission

import (
	"testing"

	"go.uber.org/zap"

	"github.com/orellana-quant/backtest-account/pkg/balance"
	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/config"
	"github.com/orellana-quant/backtest-account/pkg/events"
	"github.com/orellana-quant/backtest-account/pkg/idgen"
	"github.com/orellana-quant/backtest-account/pkg/latency"
	"github.com/orellana-quant/backtest-account/pkg/match"
	"github.com/orellana-quant/backtest-account/pkg/order"
	"github.com/orellana-quant/backtest-account/pkg/orderbook"
	"github.com/orellana-quant/backtest-account/pkg/position"
)

var btcUsdt = common.NewInstrument("BTC", "USDT", common.Spot)

func newTestAdmission(t *testing.T) (*Admission, *balance.Ledger, *match.Engine) {
	t.Helper()
	ids := idgen.New()
	ledger := balance.NewLedger()
	ledger.Deposit("USDT", 100000)
	ledger.Deposit("BTC", 10)

	books := orderbook.NewSet()
	posBook := position.NewBook(position.NetMode, ids)
	fees := config.FeesBook{
		common.Spot: config.SpotFees(config.FeeRate{MakerFees: 0.0001, TakerFees: 0.0005}),
	}
	bus := events.NewBus()
	log := zap.NewNop().Sugar()
	engine := match.NewEngine(books, ledger, posBook, fees, bus, log)
	lat := latency.New(latency.Uniform, 0, 0)

	a := New(ids, ledger, lat, engine, posBook, fees, config.NetMode, bus, log)
	return a, ledger, engine
}

func TestOpenThenCancelRestoresBalance(t *testing.T) {
	a, ledger, _ := newTestAdmission(t)

	before, _ := ledger.Balance("USDT")

	req := order.Request{
		Instruction: common.Limit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-001",
		Side:        common.Buy,
		Price:       20000,
		Size:        1,
	}
	o, err := a.Admit(req, 1000)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if o.Role != common.Maker {
		t.Fatalf("expected Maker role for a resting limit with no opposing book, got %s", o.Role)
	}

	reserved, _ := ledger.Balance("USDT")
	if reserved.Available >= before.Available {
		t.Fatalf("expected reservation to reduce available USDT: before=%v after=%v", before, reserved)
	}

	if _, _, err := ledger.ReleaseOnCancel(btcUsdt, common.Buy, req.Price, req.Size); err != nil {
		t.Fatalf("release: %v", err)
	}
	restored, _ := ledger.Balance("USDT")
	if restored.Available != before.Available {
		t.Fatalf("expected balance restored after cancel: before=%v restored=%v", before, restored)
	}
}

func TestTwoLimitsOppositeSidesClassifyRoles(t *testing.T) {
	a, _, engine := newTestAdmission(t)

	sell := order.Request{
		Instruction: common.Limit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-sell1",
		Side:        common.Sell,
		Price:       21000,
		Size:        1,
	}
	if _, err := a.Admit(sell, 1000); err != nil {
		t.Fatalf("admit sell: %v", err)
	}

	buy := order.Request{
		Instruction: common.Limit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1001,
		Cid:         "order-buy1",
		Side:        common.Buy,
		Price:       21500,
		Size:        1,
	}
	o, err := a.Admit(buy, 1001)
	if err != nil {
		t.Fatalf("admit buy: %v", err)
	}
	if o.Role != common.Taker {
		t.Fatalf("expected crossing buy to classify as Taker, got %s", o.Role)
	}
	if _, ok := engine.Books().For(btcUsdt).Best(common.Buy); !ok {
		t.Fatalf("expected the taker limit to rest after classification, since it is not IOC/FOK")
	}
}

func TestPostOnlyRejectedWhenCrossing(t *testing.T) {
	a, ledger, _ := newTestAdmission(t)

	before, _ := ledger.Balance("USDT")

	sell := order.Request{
		Instruction: common.Limit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-sell2",
		Side:        common.Sell,
		Price:       20000,
		Size:        1,
	}
	if _, err := a.Admit(sell, 1000); err != nil {
		t.Fatalf("admit sell: %v", err)
	}

	postOnly := order.Request{
		Instruction: common.PostOnlyLimit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1001,
		Cid:         "order-po1",
		Side:        common.Buy,
		Price:       20500,
		Size:        1,
	}
	_, err := a.Admit(postOnly, 1001)
	if err != common.ErrPostOnlyWouldCross {
		t.Fatalf("expected ErrPostOnlyWouldCross, got %v", err)
	}

	after, _ := ledger.Balance("USDT")
	if after.Available != before.Available {
		t.Fatalf("expected rejected PostOnly to leave balance untouched: before=%v after=%v", before, after)
	}
}

func TestMarketOrderWithNoReferencePriceIsRejected(t *testing.T) {
	a, _, _ := newTestAdmission(t)

	req := order.Request{
		Instruction: common.Market,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-mkt1",
		Side:        common.Buy,
		Size:        1,
	}
	_, err := a.Admit(req, 1000)
	if err != ErrNoReferencePrice {
		t.Fatalf("expected ErrNoReferencePrice, got %v", err)
	}
}

func TestMarketOrderFillsAgainstLastObservedPrice(t *testing.T) {
	a, ledger, engine := newTestAdmission(t)

	engine.OnTrade(match.MarketTrade{
		Exchange:  "sim",
		Symbol:    "BTCUSDT",
		Side:      common.Buy,
		Price:     20000,
		Timestamp: 999,
		Amount:    0.001,
	})

	req := order.Request{
		Instruction: common.Market,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-mkt2",
		Side:        common.Buy,
		Size:        1,
	}
	o, err := a.Admit(req, 1000)
	if err != nil {
		t.Fatalf("admit market: %v", err)
	}
	if o.Status != order.FullyFill {
		t.Fatalf("expected market order to fully fill immediately, got status %s", o.Status)
	}

	btcBal, _ := ledger.Balance("BTC")
	if btcBal.Total <= 10 {
		t.Fatalf("expected BTC credited by the market buy: %v", btcBal)
	}
}

func TestFillOrKillRejectedWithoutStateChange(t *testing.T) {
	a, ledger, engine := newTestAdmission(t)

	engine.OnTrade(match.MarketTrade{
		Exchange:  "sim",
		Symbol:    "BTCUSDT",
		Side:      common.Buy,
		Price:     20000,
		Timestamp: 999,
		Amount:    0.001,
	})

	before, _ := ledger.Balance("USDT")

	req := order.Request{
		Instruction: common.FillOrKill,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-fok1",
		Side:        common.Buy,
		Price:       19000,
		Size:        1,
	}
	_, err := a.Admit(req, 1000)
	if err != ErrFillOrKillUnfilled {
		t.Fatalf("expected ErrFillOrKillUnfilled, got %v", err)
	}

	after, _ := ledger.Balance("USDT")
	if after.Available != before.Available {
		t.Fatalf("expected FOK rejection to leave balance untouched: before=%v after=%v", before, after)
	}
}

func TestImmediateOrCancelPartiallyFillsAgainstOwnRestingBook(t *testing.T) {
	a, ledger, engine := newTestAdmission(t)

	sell := order.Request{
		Instruction: common.Limit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-resting1",
		Side:        common.Sell,
		Price:       20000,
		Size:        0.4,
	}
	if _, err := a.Admit(sell, 1000); err != nil {
		t.Fatalf("admit resting sell: %v", err)
	}

	before, _ := ledger.Balance("USDT")

	ioc := order.Request{
		Instruction: common.ImmediateOrCancel,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1001,
		Cid:         "order-ioc1",
		Side:        common.Buy,
		Price:       20000,
		Size:        1,
	}
	o, err := a.Admit(ioc, 1001)
	if err != nil {
		t.Fatalf("expected IOC to partially fill rather than error, got %v", err)
	}
	if o.Status != order.PartialFill {
		t.Fatalf("expected PartialFill status, got %s", o.Status)
	}
	if o.FilledQty != 0.4 {
		t.Fatalf("expected IOC to take exactly the resting 0.4, got %f", o.FilledQty)
	}

	if _, ok := engine.Books().For(btcUsdt).Best(common.Sell); ok {
		t.Fatalf("expected the resting sell to be fully consumed")
	}

	after, _ := ledger.Balance("USDT")
	if after.Available == before.Available {
		t.Fatalf("expected the unfilled residual's reservation to be released back")
	}
}

func TestFillOrKillRevertsWhenRestingBookInsufficient(t *testing.T) {
	a, ledger, engine := newTestAdmission(t)

	sell := order.Request{
		Instruction: common.Limit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-resting2",
		Side:        common.Sell,
		Price:       20000,
		Size:        0.4,
	}
	if _, err := a.Admit(sell, 1000); err != nil {
		t.Fatalf("admit resting sell: %v", err)
	}

	before, _ := ledger.Balance("USDT")

	fok := order.Request{
		Instruction: common.FillOrKill,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1001,
		Cid:         "order-fok2",
		Side:        common.Buy,
		Price:       20000,
		Size:        1,
	}
	_, err := a.Admit(fok, 1001)
	if err != ErrFillOrKillUnfilled {
		t.Fatalf("expected ErrFillOrKillUnfilled, got %v", err)
	}

	after, _ := ledger.Balance("USDT")
	if after.Available != before.Available {
		t.Fatalf("expected FOK revert to leave balance untouched: before=%v after=%v", before, after)
	}

	restingSell, ok := engine.Books().For(btcUsdt).Best(common.Sell)
	if !ok || restingSell.Remaining() != 0.4 {
		t.Fatalf("expected the resting sell to remain untouched by the reverted FOK")
	}
}

func TestReduceOnlyWithNoOpposingPositionRejected(t *testing.T) {
	a, _, _ := newTestAdmission(t)

	req := order.Request{
		Instruction: common.Limit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-reduce1",
		Side:        common.Buy,
		Price:       20000,
		Size:        1,
		ReduceOnly:  true,
	}
	_, err := a.Admit(req, 1000)
	if err != ErrNothingToReduce {
		t.Fatalf("expected ErrNothingToReduce, got %v", err)
	}
}

func TestDuplicateClientOrderIdRejected(t *testing.T) {
	a, _, _ := newTestAdmission(t)

	req := order.Request{
		Instruction: common.Limit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "order-dup1",
		Side:        common.Buy,
		Price:       20000,
		Size:        1,
	}
	if _, err := a.Admit(req, 1000); err != nil {
		t.Fatalf("admit: %v", err)
	}
	_, err := a.Admit(req, 1001)
	if err == nil {
		t.Fatalf("expected duplicate cid rejection")
	}
	if _, ok := err.(*common.OrderAlreadyExistsError); !ok {
		t.Fatalf("expected OrderAlreadyExistsError, got %T: %v", err, err)
	}
}

func TestInvalidClientOrderIdRejected(t *testing.T) {
	a, _, _ := newTestAdmission(t)

	req := order.Request{
		Instruction: common.Limit,
		Exchange:    "sim",
		Instrument:  btcUsdt,
		ClientTs:    1000,
		Cid:         "x",
		Side:        common.Buy,
		Price:       20000,
		Size:        1,
	}
	if _, err := a.Admit(req, 1000); err == nil {
		t.Fatalf("expected rejection for too-short client order id")
	}
}
