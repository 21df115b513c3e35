package dto

// Inbound Slack interaction payloads, normalized into tagged variants with
// explicit required fields. Validation happens here, at the boundary,
// before anything reaches the approval core.

// SubmitRequest carries a completed change-request modal.
type SubmitRequest struct {
	RobotModel     string   `validate:"required"`
	RobotID        string   `validate:"-"`
	Classification string   `validate:"required"`
	Content        string   `validate:"required"`
	Why            string   `validate:"required"`
	Docs           string   `validate:"-"`
	Submitter      string   `validate:"required"`
	Channel        string   `validate:"required"`
	Approvers      []string `validate:"required,min=1,dive,required"`
	Informed       []string `validate:"dive,required"`
}

// DecisionAction carries an approve/decline button press from an
// approver's DM.
type DecisionAction struct {
	RequestID  int64  `validate:"required"`
	ApproverID string `validate:"required"`
	Approve    bool
	// Channel and MessageTS locate the DM whose buttons get relabeled.
	Channel   string `validate:"required"`
	MessageTS string `validate:"required"`
}

// DocConfirmAction carries a documentation-confirmed button press from the
// submitter's DM.
type DocConfirmAction struct {
	RequestID int64  `validate:"required"`
	UserID    string `validate:"required"`
	Channel   string `validate:"required"`
}
