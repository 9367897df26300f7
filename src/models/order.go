package models

// -----------------------------------------------------------------------------
// Order sides, types and terminal statuses
// -----------------------------------------------------------------------------

const (
	SideBuy  = "buy"
	SideSell = "sell"

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"

	StatusFilled    = "filled"
	StatusPartial   = "partial"
	StatusCancelled = "cancelled"
)

// MOrder is an accepted order on its way to the simulated exchange.
type MOrder struct {
	OrderID   string  `json:"order_id"`
	UserID    int64   `json:"user_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	OrderType string  `json:"order_type"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price,omitempty"` // limit price, 0 for market orders
	CreatedAt int64   `json:"created_at"`
}

// MOrderExecution is the asynchronous result the exchange resolves an order
// with. Quantity may be below the ordered quantity for partial fills.
type MOrderExecution struct {
	ExecutionID string  `json:"execution_id"`
	OrderID     string  `json:"order_id"`
	Symbol      string  `json:"symbol"`
	Status      string  `json:"status"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp"`
}
