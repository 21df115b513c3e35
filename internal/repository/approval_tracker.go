package repository

import (
	"sync"

	"github.com/robofleet/change-request-bot/internal/models"
	appErrors "github.com/robofleet/change-request-bot/pkg/errors"
)

// ApprovalTracker holds each approver's decision per request. Decisions are
// write-once: a stored decision is never overwritten, whether the second
// writer is a repeat button press or the auto-timeout sweep.
type ApprovalTracker struct {
	mu        sync.Mutex
	decisions map[int64]map[string]models.Decision
}

// NewApprovalTracker builds an empty tracker.
func NewApprovalTracker() *ApprovalTracker {
	return &ApprovalTracker{decisions: make(map[int64]map[string]models.Decision)}
}

// Record stores an explicit decision. Returns ErrAlreadyResponded without
// mutating state when the approver already has one.
func (t *ApprovalTracker) Record(requestID int64, approverID string, decision models.Decision) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.decisions[requestID]
	if current == nil {
		current = make(map[string]models.Decision)
		t.decisions[requestID] = current
	}
	if _, ok := current[approverID]; ok {
		return appErrors.ErrAlreadyResponded
	}
	current[approverID] = decision
	return nil
}

// Decisions returns a copy of the current mapping, possibly empty.
func (t *ApprovalTracker) Decisions(requestID int64) map[string]models.Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]models.Decision, len(t.decisions[requestID]))
	for k, v := range t.decisions[requestID] {
		out[k] = v
	}
	return out
}

// MarkNoResponse sets no_response only if the approver has no decision yet.
// Reports whether it wrote: a real decision racing the timeout sweep wins
// whichever lands first, and the loser is a no-op.
func (t *ApprovalTracker) MarkNoResponse(requestID int64, approverID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.decisions[requestID]
	if current == nil {
		current = make(map[string]models.Decision)
		t.decisions[requestID] = current
	}
	if _, ok := current[approverID]; ok {
		return false
	}
	current[approverID] = models.DecisionNoResponse
	return true
}

// Decision returns a single approver's decision, if any.
func (t *ApprovalTracker) Decision(requestID int64, approverID string) (models.Decision, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.decisions[requestID][approverID]
	return d, ok
}
