package registry

import (
	"sync"
)

// -----------------------------------------------------------------------------
// Subscriber is the fan-out target a session exposes to the registry.
// Deliver must never block: it returns false when the payload could not be
// queued (backpressure), and true when queued or when the session is already
// closing (the tick is silently dropped in that case).
// -----------------------------------------------------------------------------

type Subscriber interface {
	ID() string
	Deliver(payload []byte) bool
	Drop()
}

// -----------------------------------------------------------------------------
// Registry is the symbol -> sessions fan-out index.
//
// Invariant: a session id appears under a symbol iff that session subscribed
// to the symbol and has not unsubscribed or been removed since. The reverse
// index keeps RemoveSession exact without scanning every symbol.
// -----------------------------------------------------------------------------

type Registry struct {
	mu        sync.RWMutex
	bySymbol  map[string]map[string]Subscriber
	bySession map[string]map[string]struct{}
	subs      map[string]Subscriber
}

// -----------------------------------------------------------------------------

func NewRegistry() *Registry {
	return &Registry{
		bySymbol:  make(map[string]map[string]Subscriber),
		bySession: make(map[string]map[string]struct{}),
		subs:      make(map[string]Subscriber),
	}
}

// -----------------------------------------------------------------------------

// Subscribe adds the subscriber under every given symbol. Subscribing twice to
// the same symbol is a no-op.
func (r *Registry) Subscribe(sub Subscriber, symbols []string) {
	if len(symbols) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := sub.ID()
	r.subs[id] = sub
	if r.bySession[id] == nil {
		r.bySession[id] = make(map[string]struct{})
	}

	for _, symbol := range symbols {
		if r.bySymbol[symbol] == nil {
			r.bySymbol[symbol] = make(map[string]Subscriber)
		}
		r.bySymbol[symbol][id] = sub
		r.bySession[id][symbol] = struct{}{}
	}
}

// -----------------------------------------------------------------------------

// Unsubscribe removes the subscriber from the given symbols. Unsubscribing a
// symbol that was never subscribed is a no-op, not an error.
func (r *Registry) Unsubscribe(sub Subscriber, symbols []string) {
	if len(symbols) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := sub.ID()
	for _, symbol := range symbols {
		if sessions, ok := r.bySymbol[symbol]; ok {
			delete(sessions, id)
			if len(sessions) == 0 {
				delete(r.bySymbol, symbol)
			}
		}
		if symbolSet, ok := r.bySession[id]; ok {
			delete(symbolSet, symbol)
		}
	}

	if symbolSet, ok := r.bySession[id]; ok && len(symbolSet) == 0 {
		delete(r.bySession, id)
		delete(r.subs, id)
	}
}

// -----------------------------------------------------------------------------

// RemoveSession drops the session from every symbol it was subscribed to.
// Called on disconnect and when a broadcast write backpressures.
func (r *Registry) RemoveSession(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbolSet, ok := r.bySession[id]
	if !ok {
		return
	}

	for symbol := range symbolSet {
		if sessions, ok := r.bySymbol[symbol]; ok {
			delete(sessions, id)
			if len(sessions) == 0 {
				delete(r.bySymbol, symbol)
			}
		}
	}

	delete(r.bySession, id)
	delete(r.subs, id)
}

// -----------------------------------------------------------------------------

// SessionsFor returns a snapshot of the subscribers currently registered for
// the symbol. The snapshot is safe to iterate without holding the lock; a
// session closed concurrently just drops the delivery.
func (r *Registry) SessionsFor(symbol string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions, ok := r.bySymbol[symbol]
	if !ok {
		return nil
	}

	result := make([]Subscriber, 0, len(sessions))
	for _, sub := range sessions {
		result = append(result, sub)
	}
	return result
}

// -----------------------------------------------------------------------------

// Symbols returns the symbols a session is currently subscribed to.
func (r *Registry) Symbols(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	symbolSet, ok := r.bySession[id]
	if !ok {
		return nil
	}

	result := make([]string, 0, len(symbolSet))
	for symbol := range symbolSet {
		result = append(result, symbol)
	}
	return result
}

// -----------------------------------------------------------------------------

// Counts returns the subscriber count per symbol (health/status surface).
func (r *Registry) Counts() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.bySymbol))
	for symbol, sessions := range r.bySymbol {
		counts[symbol] = len(sessions)
	}
	return counts
}
