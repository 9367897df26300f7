package simulator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-stream/src/logger"
	"market-stream/src/models"
)

type fixedPrices map[string]float64

func (p fixedPrices) CurrentPrice(symbol string) (float64, bool) {
	price, ok := p[symbol]
	return price, ok
}

func newTestExecutor() *SimulatedExecutor {
	log := logger.NewLogger("error", "test")
	return NewSimulatedExecutor(log, fixedPrices{"AAPL": 150.0}, nil)
}

// -----------------------------------------------------------------------------

func TestExecutor_UnknownSymbolRejected(t *testing.T) {
	e := newTestExecutor()

	_, err := e.Submit(models.MOrder{Symbol: "NOPE", Side: models.SideBuy, Quantity: 1})
	assert.Error(t, err)
}

func TestExecutor_MarketOrderResolves(t *testing.T) {
	e := newTestExecutor()

	result, err := e.Submit(models.MOrder{
		UserID:    7,
		Symbol:    "AAPL",
		Side:      models.SideBuy,
		OrderType: models.OrderTypeMarket,
		Quantity:  10,
	})
	require.NoError(t, err)

	select {
	case exec := <-result:
		assert.True(t, strings.HasPrefix(exec.OrderID, "ord_"))
		assert.True(t, strings.HasPrefix(exec.ExecutionID, "exec_"))
		assert.Equal(t, "AAPL", exec.Symbol)
		assert.NotZero(t, exec.Timestamp)

		switch exec.Status {
		case models.StatusFilled:
			assert.Equal(t, 10.0, exec.Quantity)
			// Market fill tracks the current price within slippage
			assert.InDelta(t, 150.0, exec.Price, 150.0*slippage+1e-9)
		case models.StatusPartial:
			assert.Greater(t, exec.Quantity, 0.0)
			assert.Less(t, exec.Quantity, 10.0)
		case models.StatusCancelled:
			assert.Zero(t, exec.Quantity)
		default:
			t.Fatalf("unexpected status %q", exec.Status)
		}

	case <-time.After(2 * time.Second):
		t.Fatal("execution never resolved")
	}
}

func TestExecutor_LimitOrderFillsAtLimit(t *testing.T) {
	e := newTestExecutor()

	// Run a few to get at least one filled/partial outcome
	for i := 0; i < 5; i++ {
		result, err := e.Submit(models.MOrder{
			Symbol:    "AAPL",
			Side:      models.SideSell,
			OrderType: models.OrderTypeLimit,
			Quantity:  5,
			Price:     152.5,
		})
		require.NoError(t, err)

		exec := <-result
		if exec.Status == models.StatusCancelled {
			continue
		}
		assert.Equal(t, 152.5, exec.Price)
		return
	}
	t.Skip("all five orders cancelled (probability ~2e-8)")
}

func TestExecutor_IDFormat(t *testing.T) {
	id := newID("ord")
	require.True(t, strings.HasPrefix(id, "ord_"))
	assert.Len(t, id, len("ord_")+12)

	assert.NotEqual(t, newID("exec"), newID("exec"))
}
