package onlineapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/orellana-quant/backtest-account/pkg/account"
	"github.com/orellana-quant/backtest-account/pkg/common"
)

// Server serves AccountCore's read-only state over REST and fans its
// event bus out to WebSocket subscribers.
type Server struct {
	core   *account.Core
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer wires routes around core. log may be nil, in which case a
// no-op logger is used.
func NewServer(core *account.Core, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		core:   core,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/balances/{token}", s.handleGetBalance).Methods("GET")
	api.HandleFunc("/positions", s.handleGetPositions).Methods("GET")
	api.HandleFunc("/orders/{symbol}", s.handleGetOrders).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start blocks serving addr. The event bridge must already be running via
// StreamEvents, which the caller starts alongside Start.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	s.log.Infow("onlineapi server starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// StreamEvents subscribes to core's event bus and rebroadcasts every
// event to interested WebSocket clients. Run it in its own goroutine
// alongside Start.
func (s *Server) StreamEvents() {
	ch := s.core.Events(256)
	for ev := range ch {
		s.hub.broadcastEvent(ev)
	}
}

// instrumentFromPath parses a "{base}-{quote}-{kind}" path segment, e.g.
// "BTC-USDT-perpetual", defaulting kind to spot when omitted.
func instrumentFromPath(segment string) (common.Instrument, error) {
	parts := strings.Split(segment, "-")
	if len(parts) < 2 {
		return common.Instrument{}, fmt.Errorf("invalid symbol %q: expected BASE-QUOTE[-KIND]", segment)
	}
	kind := common.Spot
	if len(parts) >= 3 {
		k, err := parseKind(parts[2])
		if err != nil {
			return common.Instrument{}, err
		}
		kind = k
	}
	return common.NewInstrument(parts[0], parts[1], kind), nil
}

func parseKind(s string) (common.InstrumentKind, error) {
	switch strings.ToLower(s) {
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
		return 0, fmt.Errorf("unknown instrument kind %q", s)
	}
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	balances := s.core.FetchTokenBalances()
	out := make([]BalanceInfo, 0, len(balances))
	for token, bal := range balances {
		out = append(out, BalanceInfo{Token: token.String(), Total: bal.Total, Available: bal.Available})
	}
	respondJSON(w, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	token := common.NewToken(mux.Vars(r)["token"])
	bal, err := s.core.FetchTokenBalance(token)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown token", err.Error())
		return
	}
	respondJSON(w, BalanceInfo{Token: token.String(), Total: bal.Total, Available: bal.Available})
}

func (s *Server) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions := s.core.FetchAllPositions()
	out := make([]PositionInfo, 0, len(positions))
	for _, p := range positions {
		out = append(out, PositionInfo{
			Symbol:           p.Meta.Instrument.Symbol(),
			Side:             p.Meta.Side.String(),
			Size:             p.Meta.CurrentSize,
			AvgPrice:         p.Meta.CurrentAvgPrice,
			MarkPrice:        p.Meta.CurrentSymbolPrice,
			UnrealisedPnl:    p.Meta.UnrealisedPnl,
			RealisedPnl:      p.Meta.RealisedPnl,
			LiquidationPrice: p.LiquidationPrice,
			Leverage:         p.Leverage,
		})
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	instrument, err := instrumentFromPath(mux.Vars(r)["symbol"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid symbol", err.Error())
		return
	}
	orders := s.core.FetchOrdersOpen(instrument)
	out := make([]OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = OrderInfo{
			ID:        uint64(o.Id),
			Cid:       o.Cid,
			Symbol:    o.Instrument.Symbol(),
			Side:      o.Side.String(),
			Status:    o.Status.String(),
			Role:      o.Role.String(),
			Price:     o.Price,
			Size:      o.Size,
			Filled:    o.FilledQty,
			Timestamp: o.ClientTs,
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
