package utils

import (
	"market-stream/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer with structured data.
// True ring buffer - no resizing allowed!
// -----------------------------------------------------------------------------

type RingBuffer struct {
	// Data storage as 2D slice (rows x features)
	data     [][models.RB_NUM_FEATURES]float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}

	return &RingBuffer{
		data:     make([][models.RB_NUM_FEATURES]float64, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds a structured data point (Strict Type)
func (rb *RingBuffer) Append(tick models.MPriceTick) {
	rb.data[rb.index] = [models.RB_NUM_FEATURES]float64{
		float64(tick.Timestamp),
		tick.Price,
		tick.Change,
		tick.ChangePercent,
		tick.Volume,
		tick.Bid,
		tick.Ask,
	}

	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// Size returns the current number of stored ticks
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

func (rb *RingBuffer) rowToTick(symbol string, row [models.RB_NUM_FEATURES]float64) models.MPriceTick {
	return models.MPriceTick{
		Symbol:        symbol,
		Timestamp:     int64(row[models.RB_IDX_TIMESTAMP]),
		Price:         row[models.RB_IDX_PRICE],
		Change:        row[models.RB_IDX_CHANGE],
		ChangePercent: row[models.RB_IDX_CHANGE_PCT],
		Volume:        row[models.RB_IDX_VOLUME],
		Bid:           row[models.RB_IDX_BID],
		Ask:           row[models.RB_IDX_ASK],
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns n latest records as MPriceTick (oldest first)
func (rb *RingBuffer) GetLatest(symbol string, n int) []models.MPriceTick {
	if rb.size == 0 || n <= 0 {
		return []models.MPriceTick{}
	}

	// Calculate how many to return
	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MPriceTick, count)

	// Calculate starting index (latest data is at index-1)
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		result[i] = rb.rowToTick(symbol, rb.data[idx])
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest)
func (rb *RingBuffer) GetAll(symbol string) []models.MPriceTick {
	if rb.size == 0 {
		return []models.MPriceTick{}
	}

	result := make([]models.MPriceTick, rb.size)

	// Calculate start index (oldest element)
	var startIdx int
	if rb.size == rb.capacity {
		// Buffer is full, oldest is at current index (wrap-around)
		startIdx = rb.index
	} else {
		// Buffer not full, oldest is at index 0
		startIdx = 0
	}

	// Extract in order
	for i := 0; i < rb.size; i++ {
		idx := (startIdx + i) % rb.capacity
		result[i] = rb.rowToTick(symbol, rb.data[idx])
	}

	return result
}
