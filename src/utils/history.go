package utils

import (
	"sync"

	"market-stream/src/models"
)

// -----------------------------------------------------------------------------
// HistoryCache keeps a bounded per-symbol tick window plus the latest tick of
// every symbol. One writer (the generator), many readers (REST handlers).
// -----------------------------------------------------------------------------

type HistoryCache struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[string]*RingBuffer
	latest   map[string]models.MPriceTick
}

// -----------------------------------------------------------------------------

func NewHistoryCache(capacity int) *HistoryCache {
	return &HistoryCache{
		capacity: capacity,
		buffers:  make(map[string]*RingBuffer),
		latest:   make(map[string]models.MPriceTick),
	}
}

// -----------------------------------------------------------------------------

// Append records one tick for its symbol.
func (h *HistoryCache) Append(tick models.MPriceTick) {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.buffers[tick.Symbol]
	if !ok {
		buf = NewRingBuffer(h.capacity)
		h.buffers[tick.Symbol] = buf
	}
	buf.Append(tick)
	h.latest[tick.Symbol] = tick
}

// -----------------------------------------------------------------------------

// Latest returns the most recent n ticks for the symbol, oldest first.
func (h *HistoryCache) Latest(symbol string, n int) []models.MPriceTick {
	h.mu.RLock()
	defer h.mu.RUnlock()

	buf, ok := h.buffers[symbol]
	if !ok {
		return []models.MPriceTick{}
	}
	return buf.GetLatest(symbol, n)
}

// -----------------------------------------------------------------------------

// Snapshot returns the latest tick of every symbol seen so far.
func (h *HistoryCache) Snapshot() map[string]models.MPriceTick {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[string]models.MPriceTick, len(h.latest))
	for symbol, tick := range h.latest {
		result[symbol] = tick
	}
	return result
}
