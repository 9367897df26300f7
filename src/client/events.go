package client

import "market-stream/src/models"

// -----------------------------------------------------------------------------
// Events delivered by the SocketManager
//
// Consumers read a single typed channel instead of registering callbacks, so
// message handling happens on the consumer's goroutine, not the reader's.
// -----------------------------------------------------------------------------

type EventKind string

const (
	EventConnected     EventKind = "connected"
	EventAuthenticated EventKind = "authenticated"
	EventSubscribed    EventKind = "subscribed"
	EventUnsubscribed  EventKind = "unsubscribed"
	EventPriceUpdate   EventKind = "price_update"
	EventOrderExecuted EventKind = "order_executed"
	EventMarketAlert   EventKind = "market_alert"
	EventPong          EventKind = "pong"
	EventError         EventKind = "error"
	EventDisconnected  EventKind = "disconnected"
)

// Event carries one server message (or connection state change) to the
// consumer. Only the fields relevant to Kind are populated.
type Event struct {
	Kind      EventKind
	UserID    int64
	Symbols   []string
	Tick      *models.MPriceTick
	Execution *models.MOrderExecution
	Alert     *models.MMarketAlert
	Code      string
	Message   string
	Err       error
	Timestamp int64
}
