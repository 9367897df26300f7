package models

// -----------------------------------------------------------------------------
// Wire protocol (JSON messages over one WebSocket per client)
// The "type" field discriminates every message in both directions.
// -----------------------------------------------------------------------------

// Client -> Server
const (
	MsgAuth        = "auth"
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgPlaceOrder  = "place_order"
	MsgPing        = "ping"
)

// Server -> Client
const (
	MsgConnectionEstablished = "connection_established"
	MsgAuthSuccess           = "auth_success"
	MsgSubscribed            = "subscribed"
	MsgUnsubscribed          = "unsubscribed"
	MsgPriceUpdate           = "price_update"
	MsgOrderExecuted         = "order_executed"
	MsgMarketAlert           = "market_alert"
	MsgPong                  = "pong"
	MsgError                 = "error"
)

// Error codes carried in MErrorMessage.Code
const (
	ErrCodeError        = "error"
	ErrCodeAuthRequired = "auth_required"
	ErrCodeAuthFailed   = "auth_failed"
	ErrCodeValidation   = "validation_error"
)

// -----------------------------------------------------------------------------
// Inbound envelope
// -----------------------------------------------------------------------------

// MClientMessage is the decoded form of every client -> server message.
// Fields are populated depending on Type.
type MClientMessage struct {
	Type      string   `json:"type"`
	Token     string   `json:"token,omitempty"`
	Symbols   []string `json:"symbols,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	Side      string   `json:"side,omitempty"`
	Quantity  float64  `json:"quantity,omitempty"`
	OrderType string   `json:"order_type,omitempty"`
	Price     float64  `json:"price,omitempty"`
}

// -----------------------------------------------------------------------------
// Outbound messages
// -----------------------------------------------------------------------------

type MConnectionEstablished struct {
	Type             string `json:"type"`
	SessionID        string `json:"session_id"`
	Message          string `json:"message"`
	MaxSubscriptions int    `json:"max_subscriptions"`
}

type MAuthSuccessMessage struct {
	Type    string `json:"type"`
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

type MSubscribedMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	Count   int      `json:"count"`
}

type MUnsubscribedMessage struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

type MPriceUpdateMessage struct {
	Type string `json:"type"`
	MPriceTick
}

type MOrderExecutedMessage struct {
	Type      string  `json:"type"`
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Status    string  `json:"status"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

type MMarketAlertMessage struct {
	Type string `json:"type"`
	MMarketAlert
}

type MPongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type MErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// -----------------------------------------------------------------------------
// Generic server envelope (client-side decoding)
// -----------------------------------------------------------------------------

// MServerMessage is the flat union the client socket manager decodes every
// server -> client message into before turning it into a typed event.
type MServerMessage struct {
	Type             string   `json:"type"`
	SessionID        string   `json:"session_id,omitempty"`
	UserID           int64    `json:"user_id,omitempty"`
	Message          string   `json:"message,omitempty"`
	Code             string   `json:"code,omitempty"`
	MaxSubscriptions int      `json:"max_subscriptions,omitempty"`
	Symbols          []string `json:"symbols,omitempty"`
	Count            int      `json:"count,omitempty"`
	Symbol           string   `json:"symbol,omitempty"`
	Price            float64  `json:"price,omitempty"`
	Change           float64  `json:"change,omitempty"`
	ChangePercent    float64  `json:"change_percent,omitempty"`
	Volume           float64  `json:"volume,omitempty"`
	Bid              float64  `json:"bid,omitempty"`
	Ask              float64  `json:"ask,omitempty"`
	OrderID          string   `json:"order_id,omitempty"`
	Status           string   `json:"status,omitempty"`
	Quantity         float64  `json:"quantity,omitempty"`
	Severity         string   `json:"severity,omitempty"`
	Title            string   `json:"title,omitempty"`
	Timestamp        int64    `json:"timestamp,omitempty"`
}
