package repository

import "sync"

// FinalizationMarker records which requests have committed their terminal
// transition. TryFinalize is the commit point guaranteeing the outcome side
// effects run at most once per request.
type FinalizationMarker struct {
	mu        sync.Mutex
	finalized map[int64]struct{}
}

// NewFinalizationMarker builds an empty marker set.
func NewFinalizationMarker() *FinalizationMarker {
	return &FinalizationMarker{finalized: make(map[int64]struct{})}
}

// TryFinalize atomically adds the request and reports whether this caller
// won the terminal transition. Exactly one caller per request ever sees
// true.
func (m *FinalizationMarker) TryFinalize(requestID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.finalized[requestID]; ok {
		return false
	}
	m.finalized[requestID] = struct{}{}
	return true
}

// Finalized reports whether the request already committed.
func (m *FinalizationMarker) Finalized(requestID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.finalized[requestID]
	return ok
}
