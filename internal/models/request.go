package models

import "time"

// Decision is an approver's answer to a change request.
type Decision string

const (
	DecisionApproved   Decision = "approved"
	DecisionDeclined   Decision = "declined"
	DecisionNoResponse Decision = "no_response"
)

// Outcome is the terminal result of a finalized request.
type Outcome string

const (
	OutcomeApproved           Outcome = "approved"
	OutcomeRejectedOrTimedOut Outcome = "rejected_or_timed_out"
)

// Lifecycle statuses mirrored to the spreadsheet and Firestore. The emoji
// prefixes match the rows written by the previous generation of the bot so
// both can share a sheet.
const (
	StatusPending           = "🕒 Pending Approval"
	StatusPendingDocUpdate  = " ✅ -> Pending Doc Update"
	StatusNeedsResubmission = " ❌ Needs Resubmission"
)

// ChangeRequest is the full in-memory record of a submitted request. Owned
// by the request registry for the process lifetime; external stores only
// ever see snapshots of it.
type ChangeRequest struct {
	ID             int64
	RobotModel     string
	RobotID        string
	Classification string
	Content        string
	Why            string
	Docs           string
	Submitter      string
	Channel        string
	ThreadTS       string
	Approvers      []string
	Informed       []string
	CreatedAt      time.Time
	DocConfirmed   bool

	// RemindedUsers tracks which approvers already received the single
	// pending-request reminder.
	RemindedUsers map[string]bool
}

// Clone returns a deep copy safe to hand out across goroutines.
func (r *ChangeRequest) Clone() *ChangeRequest {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Approvers = append([]string(nil), r.Approvers...)
	cp.Informed = append([]string(nil), r.Informed...)
	cp.RemindedUsers = make(map[string]bool, len(r.RemindedUsers))
	for k, v := range r.RemindedUsers {
		cp.RemindedUsers[k] = v
	}
	return &cp
}

// LogRow is the flattened snapshot appended to the tabular log. Field order
// mirrors the sheet columns A through M.
type LogRow struct {
	RequestID      int64
	RobotModel     string
	RobotID        string
	Classification string
	Content        string
	Why            string
	Approvers      []string
	ApproverStatus []string
	Informed       []string
	Docs           string
	Submitter      string
	SubmittedAt    time.Time
	Status         string
}

// DocRecord is the document-store projection of a change request, keyed by
// the request ID.
type DocRecord struct {
	RobotModel     string   `firestore:"robotModel"`
	RobotID        string   `firestore:"robotId"`
	Classification string   `firestore:"classification"`
	Content        string   `firestore:"content"`
	Why            string   `firestore:"why"`
	Approvers      []string `firestore:"approvers"`
	ApproverStatus []string `firestore:"approverStatus"`
	Informed       []string `firestore:"inform"`
	Docs           string   `firestore:"docs"`
	Submitter      string   `firestore:"submitter"`
	Channel        string   `firestore:"channel"`
	SubmittedAt    string   `firestore:"submittedAt"`
	Status         string   `firestore:"status"`
	ThreadTS       string   `firestore:"thread_ts"`
}
