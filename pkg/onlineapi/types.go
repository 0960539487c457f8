// Package onlineapi exposes a read-only view of a running AccountCore
// over REST and a WebSocket event stream, for a dashboard or monitoring
// tool to watch a backtest as it replays. It never accepts order
// submissions itself — those go through AccountCore directly from the
// driving code — since a backtest's trade tape is fed deterministically
// by LetItRoll rather than by network clients.
package onlineapi

// BalanceInfo is one token's ledger entry.
type BalanceInfo struct {
	Token     string  `json:"token"`
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
}

// PositionInfo is one open position.
type PositionInfo struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"`
	Size             float64 `json:"size"`
	AvgPrice         float64 `json:"avgPrice"`
	MarkPrice        float64 `json:"markPrice"`
	UnrealisedPnl    float64 `json:"unrealisedPnl"`
	RealisedPnl      float64 `json:"realisedPnl"`
	LiquidationPrice float64 `json:"liquidationPrice"`
	Leverage         float64 `json:"leverage"`
}

// OrderInfo is one resting order.
type OrderInfo struct {
	ID        uint64  `json:"id"`
	Cid       string  `json:"cid"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Status    string  `json:"status"`
	Role      string  `json:"role"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Filled    float64 `json:"filled"`
	Timestamp int64   `json:"timestamp"`
}

// ErrorResponse is returned for every non-2xx REST response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WSMessage is the envelope every event published to a WebSocket
// subscriber is wrapped in. Data's concrete shape depends on Type.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by a client to change its channel
// subscriptions.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

// OrderUpdate mirrors an OrdersNew/OrdersFilled/OrdersPartiallyFilled/
// OrdersCancelled account event.
type OrderUpdate struct {
	OrderID   uint64  `json:"orderId"`
	Cid       string  `json:"cid"`
	Symbol    string  `json:"symbol"`
	Status    string  `json:"status"`
	Filled    float64 `json:"filled"`
	Size      float64 `json:"size"`
	Timestamp int64   `json:"timestamp"`
}

// BalanceUpdate mirrors a BalanceEvent/BalancesEvent account event.
type BalanceUpdate struct {
	Token     string  `json:"token"`
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
	Timestamp int64   `json:"timestamp"`
}

// TradeUpdate mirrors a TradeEvent account event.
type TradeUpdate struct {
	TradeID   uint64  `json:"tradeId"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Fees      float64 `json:"fees"`
	Timestamp int64   `json:"timestamp"`
}

// PositionUpdate mirrors a PositionsEvent account event.
type PositionUpdate struct {
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Size          float64 `json:"size"`
	AvgPrice      float64 `json:"avgPrice"`
	UnrealisedPnl float64 `json:"unrealisedPnl"`
	Timestamp     int64   `json:"timestamp"`
}
