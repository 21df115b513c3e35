package repository

import (
	"sync"
	"time"

	"github.com/robofleet/change-request-bot/internal/models"
	appErrors "github.com/robofleet/change-request-bot/pkg/errors"
)

// RequestRegistry owns the full change-request records for the process
// lifetime. Records are never deleted; external mirrors are the only
// durable copies.
type RequestRegistry struct {
	mu       sync.Mutex
	requests map[int64]*models.ChangeRequest
	lastID   int64
}

// NewRequestRegistry builds an empty registry.
func NewRequestRegistry() *RequestRegistry {
	return &RequestRegistry{requests: make(map[int64]*models.ChangeRequest)}
}

// Create inserts a new record and returns its generated ID. IDs are
// millisecond-epoch timestamps with a monotonic guard, so they stay unique
// and orderable even for submissions landing in the same millisecond.
func (r *RequestRegistry) Create(req *models.ChangeRequest) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id

	stored := req.Clone()
	stored.ID = id
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.RemindedUsers == nil {
		stored.RemindedUsers = make(map[string]bool)
	}
	r.requests[id] = stored
	return id
}

// Get returns a copy of the record or ErrNotFound.
func (r *RequestRegistry) Get(requestID int64) (*models.ChangeRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return req.Clone(), nil
}

// SetDocConfirmed marks the documentation as updated. Idempotent; unknown
// IDs report ErrNotFound.
func (r *RequestRegistry) SetDocConfirmed(requestID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return appErrors.ErrNotFound
	}
	req.DocConfirmed = true
	return nil
}

// MarkReminded records that an approver received the pending reminder.
// Returns false when the approver was already reminded (or the record is
// gone), so the sweep never sends duplicates.
func (r *RequestRegistry) MarkReminded(requestID int64, approverID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return false
	}
	if req.RemindedUsers[approverID] {
		return false
	}
	req.RemindedUsers[approverID] = true
	return true
}
