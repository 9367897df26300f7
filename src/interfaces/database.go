package interfaces

import "market-stream/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveTicksBulk inserts a batch of generated price ticks.
	SaveTicksBulk(ticks []models.MPriceTick) error

	// -----------------------------------------------------------------------------

	// SaveOrder records an accepted order.
	SaveOrder(order models.MOrder) error

	// -----------------------------------------------------------------------------

	// SaveExecution records the execution result of an order.
	SaveExecution(exec models.MOrderExecution) error

	// -----------------------------------------------------------------------------

	// SaveConnectionEvent appends one session lifecycle event.
	SaveConnectionEvent(event models.MConnectionEvent) error

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
