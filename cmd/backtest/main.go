package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/orellana-quant/backtest-account/pkg/account"
	"github.com/orellana-quant/backtest-account/pkg/common"
	"github.com/orellana-quant/backtest-account/pkg/config"
	"github.com/orellana-quant/backtest-account/pkg/feed"
	"github.com/orellana-quant/backtest-account/pkg/feed/dbnfeed"
	"github.com/orellana-quant/backtest-account/pkg/onlineapi"
	"github.com/orellana-quant/backtest-account/pkg/persist"
	"github.com/orellana-quant/backtest-account/pkg/telemetry"
)

func main() {
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/backtest.log"
	}
	logger, err := telemetry.NewLoggerWithFile(logFile)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Load(os.Getenv("ACCOUNT_CONFIG"))
	if err != nil {
		sugar.Fatalw("config_load_failed", "err", err)
	}

	var store *persist.Store
	if snapshotPath := os.Getenv("SNAPSHOT_PATH"); snapshotPath != "" {
		store, err = persist.Open(snapshotPath)
		if err != nil {
			sugar.Fatalw("snapshot_open_failed", "err", err)
		}
		defer store.Close()
	}

	core := account.New(cfg, sugar, store)
	defer core.Close()

	if store != nil {
		if err := core.LoadSnapshot(); err != nil {
			sugar.Fatalw("snapshot_load_failed", "err", err)
		}
		sugar.Info("snapshot_restored")
	}

	if deposits := os.Getenv("INITIAL_DEPOSITS"); deposits != "" {
		applyInitialDeposits(core, deposits, sugar)
	}

	src, err := openFeed(os.Getenv("TRADE_TAPE"), os.Getenv("TRADE_TAPE_EXCHANGE"))
	if err != nil {
		sugar.Fatalw("feed_open_failed", "err", err)
	}
	if src != nil {
		core.AttachFeed(src)
		defer src.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if apiAddr := os.Getenv("API_ADDR"); apiAddr != "" {
		apiServer := onlineapi.NewServer(core, sugar)
		go apiServer.StreamEvents()
		go func() {
			sugar.Infow("onlineapi_server_starting", "addr", apiAddr)
			if err := apiServer.Start(apiAddr); err != nil {
				sugar.Errorw("onlineapi_server_failed", "err", err)
			}
		}()
	}

	runBacktest(ctx, core, sugar)
}

// applyInitialDeposits parses a "USDT=20000,BTC=10" spec from the
// environment and credits each token before the tape starts replaying.
func applyInitialDeposits(core *account.Core, spec string, log *zap.SugaredLogger) {
	deposits := make(map[common.Token]float64)
	for _, pair := range splitNonEmpty(spec, ',') {
		kv := splitNonEmpty(pair, '=')
		if len(kv) != 2 {
			log.Warnw("malformed INITIAL_DEPOSITS entry", "entry", pair)
			continue
		}
		amount, err := strconv.ParseFloat(kv[1], 64)
		if err != nil {
			log.Warnw("malformed INITIAL_DEPOSITS amount", "entry", pair, "err", err)
			continue
		}
		deposits[common.NewToken(kv[0])] = amount
	}
	balances := core.DepositTokens(deposits)
	for token, bal := range balances {
		log.Infow("initial_deposit", "token", token, "total", bal.Total)
	}
}

// runBacktest drives LetItRoll until the feed is exhausted or the process
// is asked to stop, logging progress every logInterval trades.
func runBacktest(ctx context.Context, core *account.Core, log *zap.SugaredLogger) {
	const logInterval = 10_000
	var delivered int

	for {
		select {
		case <-ctx.Done():
			log.Infow("backtest_stopped", "trades_processed", delivered)
			return
		default:
		}

		ok, err := core.LetItRoll()
		if err != nil {
			log.Errorw("feed_read_failed", "err", err, "trades_processed", delivered)
			return
		}
		if !ok {
			log.Infow("backtest_complete", "trades_processed", delivered)
			return
		}

		delivered++
		if delivered%logInterval == 0 {
			log.Infow("backtest_progress", "trades_processed", delivered)
		}
	}
}

// openFeed opens the configured trade tape. An empty path means no feed is
// attached (useful for a pure order-management session driven entirely by
// OpenOrders/CancelOrders, with no market replay).
func openFeed(path, exchange string) (feed.Source, error) {
	if path == "" {
		return nil, nil
	}
	if exchange == "" {
		exchange = "binance"
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	symbolByID, err := loadSymbolMap(os.Getenv("TRADE_TAPE_SYMBOLS"))
	if err != nil {
		f.Close()
		return nil, err
	}

	return dbnfeed.New(f, exchange, symbolByID), nil
}

// loadSymbolMap parses a "15144=BTCUSDT,15145=ETHUSDT" instrument-id map
// from the environment, since DBN trade records only carry a numeric id.
func loadSymbolMap(spec string) (map[uint32]string, error) {
	out := make(map[uint32]string)
	if spec == "" {
		return out, nil
	}
	for _, pair := range splitNonEmpty(spec, ',') {
		kv := splitNonEmpty(pair, '=')
		if len(kv) != 2 {
			return nil, errors.New("onlineapi: malformed TRADE_TAPE_SYMBOLS entry: " + pair)
		}
		id, err := strconv.ParseUint(kv[0], 10, 32)
		if err != nil {
			return nil, err
		}
		out[uint32(id)] = kv[1]
	}
	return out, nil
}

func splitNonEmpty(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
