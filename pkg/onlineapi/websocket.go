package onlineapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/orellana-quant/backtest-account/pkg/balance"
	"github.com/orellana-quant/backtest-account/pkg/events"
	"github.com/orellana-quant/backtest-account/pkg/match"
	"github.com/orellana-quant/backtest-account/pkg/order"
	"github.com/orellana-quant/backtest-account/pkg/position"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub maintains active WebSocket connections and fans account events out
// to whichever clients subscribed to the relevant channel.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	log        *zap.SugaredLogger
	mu         sync.RWMutex
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

// broadcastEvent translates one account event into its WSMessage shape
// and delivers it to every client subscribed to "account".
func (h *Hub) broadcastEvent(ev events.Event) {
	msg, ok := translate(ev)
	if !ok {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warnw("ws: marshal event failed", "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.IsSubscribed("account") {
			continue
		}
		select {
		case client.send <- data:
		default:
		}
	}
}

// translate narrows an account event's Payload into the matching WSMessage,
// or reports false for event kinds this façade does not surface.
func translate(ev events.Event) (WSMessage, bool) {
	switch ev.Kind {
	case events.OrdersNew, events.OrdersCancelled, events.OrdersFilled, events.OrdersPartiallyFilled:
		o, ok := ev.Payload.(*order.Order)
		if !ok {
			return WSMessage{}, false
		}
		return WSMessage{Type: "order", Data: OrderUpdate{
			OrderID:   uint64(o.Id),
			Cid:       o.Cid,
			Symbol:    o.Instrument.Symbol(),
			Status:    o.Status.String(),
			Filled:    o.FilledQty,
			Size:      o.Size,
			Timestamp: ev.ExchangeTs,
		}}, true
	case events.BalanceEvent:
		bal, ok := ev.Payload.(balance.Balance)
		if !ok {
			return WSMessage{}, false
		}
		return WSMessage{Type: "balance", Data: BalanceUpdate{
			Total: bal.Total, Available: bal.Available, Timestamp: ev.ExchangeTs,
		}}, true
	case events.BalancesEvent:
		bals, ok := ev.Payload.([]balance.Balance)
		if !ok || len(bals) == 0 {
			return WSMessage{}, false
		}
		return WSMessage{Type: "balance", Data: BalanceUpdate{
			Total: bals[0].Total, Available: bals[0].Available, Timestamp: ev.ExchangeTs,
		}}, true
	case events.TradeEvent:
		ct, ok := ev.Payload.(match.ClientTrade)
		if !ok {
			return WSMessage{}, false
		}
		return WSMessage{Type: "trade", Data: TradeUpdate{
			TradeID:   ct.TradeId,
			Symbol:    ct.Instrument.Symbol(),
			Side:      ct.Side.String(),
			Price:     ct.Price,
			Size:      ct.Size,
			Fees:      ct.Fees,
			Timestamp: ct.Timestamp,
		}}, true
	case events.PositionsEvent:
		pos, ok := ev.Payload.(*position.Position)
		if !ok {
			return WSMessage{}, false
		}
		return WSMessage{Type: "position", Data: PositionUpdate{
			Symbol:        pos.Meta.Instrument.Symbol(),
			Side:          pos.Meta.Side.String(),
			Size:          pos.Meta.CurrentSize,
			AvgPrice:      pos.Meta.CurrentAvgPrice,
			UnrealisedPnl: pos.Meta.UnrealisedPnl,
			Timestamp:     ev.ExchangeTs,
		}}, true
	default:
		return WSMessage{}, false
	}
}

// Client represents one WebSocket connection and its channel subscriptions.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	subscriptions map[string]bool
	subsMu        sync.RWMutex
}

func (c *Client) IsSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

func (c *Client) Subscribe(channel string) {
	c.subsMu.Lock()
	c.subscriptions[channel] = true
	c.subsMu.Unlock()
}

func (c *Client) Unsubscribe(channel string) {
	c.subsMu.Lock()
	delete(c.subscriptions, channel)
	c.subsMu.Unlock()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			continue
		}
		switch req.Op {
		case "subscribe":
			for _, ch := range req.Channels {
				c.Subscribe(ch)
			}
		case "unsubscribe":
			for _, ch := range req.Channels {
				c.Unsubscribe(ch)
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            conn.RemoteAddr().String(),
		subscriptions: make(map[string]bool),
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
