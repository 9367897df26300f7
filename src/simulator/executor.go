package simulator

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-stream/src/interfaces"
	"market-stream/src/logger"
	"market-stream/src/models"
)

// -----------------------------------------------------------------------------

// IPriceSource supplies the current simulated price for fills.
type IPriceSource interface {
	CurrentPrice(symbol string) (float64, bool)
}

// -----------------------------------------------------------------------------
// SimulatedExecutor resolves orders asynchronously: a short random latency,
// then a fill at the current simulated price (market) or the limit price.
// Outcome weights: mostly filled, sometimes partial, rarely cancelled.
// -----------------------------------------------------------------------------

const (
	fillDelayMin = 100 * time.Millisecond
	fillDelayMax = 800 * time.Millisecond

	partialOdds   = 0.07
	cancelledOdds = 0.03

	slippage = 0.001
)

type SimulatedExecutor struct {
	Logger *logger.Logger
	Prices IPriceSource
	DB     interfaces.IDatabase

	mu  sync.Mutex
	rng *rand.Rand
}

// -----------------------------------------------------------------------------

func NewSimulatedExecutor(log *logger.Logger, prices IPriceSource, db interfaces.IDatabase) *SimulatedExecutor {
	return &SimulatedExecutor{
		Logger: log,
		Prices: prices,
		DB:     db,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// -----------------------------------------------------------------------------

// Submit accepts a validated order, assigns its id, and resolves it on a
// background goroutine. The returned channel carries exactly one execution.
func (e *SimulatedExecutor) Submit(order models.MOrder) (<-chan models.MOrderExecution, error) {
	if _, ok := e.Prices.CurrentPrice(order.Symbol); !ok {
		return nil, fmt.Errorf("unknown symbol '%s'", order.Symbol)
	}

	order.OrderID = newID("ord")
	order.CreatedAt = time.Now().UnixMilli()

	if e.DB != nil {
		if err := e.DB.SaveOrder(order); err != nil {
			e.Logger.Error("Failed to persist order %s: %v", order.OrderID, err)
		}
	}

	result := make(chan models.MOrderExecution, 1)
	go e.resolve(order, result)

	return result, nil
}

// -----------------------------------------------------------------------------

func (e *SimulatedExecutor) resolve(order models.MOrder, result chan<- models.MOrderExecution) {
	e.mu.Lock()
	delay := fillDelayMin + time.Duration(e.rng.Int63n(int64(fillDelayMax-fillDelayMin)))
	roll := e.rng.Float64()
	partialRatio := 0.1 + e.rng.Float64()*0.8
	slip := (e.rng.Float64()*2 - 1) * slippage
	e.mu.Unlock()

	time.Sleep(delay)

	exec := models.MOrderExecution{
		ExecutionID: newID("exec"),
		OrderID:     order.OrderID,
		Symbol:      order.Symbol,
		Timestamp:   time.Now().UnixMilli(),
	}

	switch {
	case roll < cancelledOdds:
		exec.Status = models.StatusCancelled
		exec.Quantity = 0
		exec.Price = 0

	case roll < cancelledOdds+partialOdds:
		exec.Status = models.StatusPartial
		exec.Quantity = order.Quantity * partialRatio
		exec.Price = e.fillPrice(order, slip)

	default:
		exec.Status = models.StatusFilled
		exec.Quantity = order.Quantity
		exec.Price = e.fillPrice(order, slip)
	}

	if e.DB != nil {
		if err := e.DB.SaveExecution(exec); err != nil {
			e.Logger.Error("Failed to persist execution %s: %v", exec.ExecutionID, err)
		}
	}

	e.Logger.Info("Order %s %s: %s %.4f %s @ %.4f", order.OrderID, exec.Status,
		order.Side, exec.Quantity, order.Symbol, exec.Price)

	result <- exec
}

// -----------------------------------------------------------------------------

// fillPrice: limit orders fill at their limit, market orders at the current
// simulated price with a touch of slippage.
func (e *SimulatedExecutor) fillPrice(order models.MOrder, slip float64) float64 {
	if order.OrderType == models.OrderTypeLimit && order.Price > 0 {
		return order.Price
	}

	price, ok := e.Prices.CurrentPrice(order.Symbol)
	if !ok {
		return order.Price
	}
	return price * (1 + slip)
}

// -----------------------------------------------------------------------------

func newID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
