package models

// Connection event types recorded for every session lifecycle transition.
const (
	EventConnect      = "connect"
	EventAuthenticate = "authenticate"
	EventSubscribe    = "subscribe"
	EventUnsubscribe  = "unsubscribe"
	EventPlaceOrder   = "place_order"
	EventDisconnect   = "disconnect"
)

// MConnectionEvent is one audit row for a session.
type MConnectionEvent struct {
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id"` // 0 while unauthenticated
	EventType string `json:"event_type"`
	Detail    string `json:"detail"`
	Timestamp int64  `json:"timestamp"`
}
