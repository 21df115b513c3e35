package dto

// Identifiers shared between the interaction payloads Slack sends back and
// the blocks the bot renders.
const (
	ShortcutNewChangeRequest = "new_change_request"
	CallbackChangeRequest    = "change_request_submit"

	ActionApprove     = "approve_action"
	ActionDecline     = "decline_action"
	ActionConfirmDocs = "confirm_docs_updated"

	// Modal input block IDs.
	BlockRobotModel     = "robot_model"
	BlockRobotID        = "robot_id"
	BlockClassification = "classification"
	BlockContent        = "content"
	BlockWhy            = "why"
	BlockApprovers      = "approvers"
	BlockInform         = "inform"
	BlockChannel        = "channel"
	BlockDocs           = "docs"

	// Every modal input element uses the same action ID.
	InputAction = "value"
)
