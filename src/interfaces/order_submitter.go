package interfaces

import "market-stream/src/models"

// -----------------------------------------------------------------------------
// IOrderSubmitter defines the contract for order execution.
// Submission is fire-and-forget: the returned channel resolves asynchronously
// with exactly one execution result.
// -----------------------------------------------------------------------------

type IOrderSubmitter interface {

	// Submit accepts a validated order and returns a channel that will carry
	// the single execution result once the exchange resolves it.
	Submit(order models.MOrder) (<-chan models.MOrderExecution, error)
}
