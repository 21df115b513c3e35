package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/robofleet/change-request-bot/internal/models"
)

// Evaluate checks whether every required approver has a decision and, the
// first time that holds, commits the terminal transition and broadcasts
// the outcome. Safe to call any number of times from any event path; the
// finalization marker guarantees the side effects run at most once.
func (s *ApprovalService) Evaluate(ctx context.Context, requestID int64) {
	if s.marker.Finalized(requestID) {
		return
	}

	record, err := s.registry.Get(requestID)
	if err != nil {
		// A decision or timeout referencing an unknown request means the
		// bookkeeping upstream went wrong; worth an error, never a crash.
		s.logger.Sugar().Errorw("no record found for request", "request_id", requestID)
		return
	}

	decisions := s.tracker.Decisions(requestID)
	if len(decisions) == 0 {
		return
	}
	for _, approver := range record.Approvers {
		if _, ok := decisions[approver]; !ok {
			return
		}
	}

	// Commit point. Losing the race here means another caller is already
	// running the broadcast.
	if !s.marker.TryFinalize(requestID) {
		return
	}

	outcome := classifyOutcome(decisions)
	s.metrics.IncFinalization(outcome)
	s.logger.Sugar().Infow("request finalized", "request_id", requestID, "outcome", outcome)

	participants := append([]string{record.Submitter}, record.Approvers...)
	participants = append(participants, record.Informed...)
	names := s.messenger.ResolveNames(ctx, participants)

	if outcome == models.OutcomeApproved {
		s.broadcastApproved(ctx, record, decisions, names)
	} else {
		s.broadcastRejected(ctx, record, decisions, names)
	}
}

// classifyOutcome: approved iff nobody declined and nobody timed out.
func classifyOutcome(decisions map[string]models.Decision) models.Outcome {
	for _, d := range decisions {
		if d == models.DecisionDeclined || d == models.DecisionNoResponse {
			return models.OutcomeRejectedOrTimedOut
		}
	}
	return models.OutcomeApproved
}

func (s *ApprovalService) broadcastApproved(ctx context.Context, record *models.ChangeRequest, decisions map[string]models.Decision, names map[string]string) {
	if err := s.messenger.PostDM(ctx, record.Submitter,
		"✅ Your change request has been *approved by all approvers*.\n\nA final change notice has been posted in channel.\n\nYou may now proceed with the change.\n\nPlease update the documentation accordingly. Once done, click the button below to confirm.",
		docConfirmBlocks(record.ID)); err != nil {
		s.logger.Sugar().Errorw("failed to DM submitter", "request_id", record.ID, "error", err)
		s.metrics.IncCollaboratorFailure("slack")
	}

	if _, err := s.messenger.PostMessage(ctx, record.Channel,
		fmt.Sprintf("✅ *Change Request Approved*: %s (%s)\nAll approvers have approved this change.\nDocumentation update is now required.", record.RobotModel, record.RobotID),
		approvedSummaryBlocks(record), record.ThreadTS); err != nil {
		s.logger.Sugar().Errorw("failed to post approval summary", "request_id", record.ID, "error", err)
		s.metrics.IncCollaboratorFailure("slack")
	}

	if err := s.sheet.UpsertStatus(ctx, logRow(record, decisions, names, models.StatusPendingDocUpdate)); err != nil {
		s.logger.Sugar().Errorw("sheet upsert failed", "request_id", record.ID, "error", err)
		s.metrics.IncCollaboratorFailure("sheets")
	}
	if err := s.docs.UpdateRecord(ctx, record.ID, map[string]interface{}{
		"status":         models.StatusPendingDocUpdate,
		"approverStatus": approverStatusLines(record.Approvers, decisions, names),
	}); err != nil {
		s.logger.Sugar().Errorw("docstore update failed", "request_id", record.ID, "error", err)
		s.metrics.IncCollaboratorFailure("docstore")
	}

	s.armTimer(JobDocReminder, record.ID, s.cfg.DocReminderDelay)
}

func (s *ApprovalService) broadcastRejected(ctx context.Context, record *models.ChangeRequest, decisions map[string]models.Decision, names map[string]string) {
	declined := mentionsWithDecision(decisions, models.DecisionDeclined)
	noResponse := mentionsWithDecision(decisions, models.DecisionNoResponse)

	if err := s.messenger.PostDM(ctx, record.Submitter,
		fmt.Sprintf(":warning: Your change request could not proceed.\nSome approvers have declined or did not respond in time.\n\n*Declined:* %s\n*No Response:* %s\n\nPlease coordinate and submit again if needed.",
			orNone(declined), orNone(noResponse)), nil); err != nil {
		s.logger.Sugar().Errorw("failed to DM submitter", "request_id", record.ID, "error", err)
		s.metrics.IncCollaboratorFailure("slack")
	}

	if _, err := s.messenger.PostMessage(ctx, record.Channel,
		fmt.Sprintf("❌ *Change Request Rejected or Timed Out* for %s (%s)\n\n*Declined:* %s\n*No Response:* %s\n\nPlease coordinate and resubmit if needed.",
			record.RobotModel, record.RobotID, orNone(declined), orNone(noResponse)),
		nil, record.ThreadTS); err != nil {
		s.logger.Sugar().Errorw("failed to post rejection summary", "request_id", record.ID, "error", err)
		s.metrics.IncCollaboratorFailure("slack")
	}

	if err := s.sheet.UpsertStatus(ctx, logRow(record, decisions, names, models.StatusNeedsResubmission)); err != nil {
		s.logger.Sugar().Errorw("sheet upsert failed", "request_id", record.ID, "error", err)
		s.metrics.IncCollaboratorFailure("sheets")
	}
	if err := s.docs.UpdateRecord(ctx, record.ID, map[string]interface{}{
		"status":         models.StatusNeedsResubmission,
		"approverStatus": approverStatusLines(record.Approvers, decisions, names),
	}); err != nil {
		s.logger.Sugar().Errorw("docstore update failed", "request_id", record.ID, "error", err)
		s.metrics.IncCollaboratorFailure("docstore")
	}
}

func mentionsWithDecision(decisions map[string]models.Decision, want models.Decision) []string {
	out := []string{}
	for user, d := range decisions {
		if d == want {
			out = append(out, fmt.Sprintf("<@%s>", user))
		}
	}
	return out
}

func orNone(mentions []string) string {
	if len(mentions) == 0 {
		return "None"
	}
	return strings.Join(mentions, ", ")
}

// approverStatusLines renders "name: decision" pairs in approver order.
func approverStatusLines(approvers []string, decisions map[string]models.Decision, names map[string]string) []string {
	lines := make([]string, 0, len(approvers))
	for _, a := range approvers {
		name := a
		if names != nil && names[a] != "" {
			name = names[a]
		}
		d, ok := decisions[a]
		if !ok {
			d = "pending"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, d))
	}
	return lines
}

func resolveAll(ids []string, names map[string]string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if names != nil && names[id] != "" {
			out = append(out, names[id])
			continue
		}
		out = append(out, id)
	}
	return out
}

// logRow flattens the request plus current decisions into the sheet shape.
func logRow(record *models.ChangeRequest, decisions map[string]models.Decision, names map[string]string, status string) models.LogRow {
	submitter := record.Submitter
	if names != nil && names[record.Submitter] != "" {
		submitter = names[record.Submitter]
	}
	return models.LogRow{
		RequestID:      record.ID,
		RobotModel:     record.RobotModel,
		RobotID:        record.RobotID,
		Classification: record.Classification,
		Content:        record.Content,
		Why:            record.Why,
		Approvers:      resolveAll(record.Approvers, names),
		ApproverStatus: approverStatusLines(record.Approvers, decisions, names),
		Informed:       resolveAll(record.Informed, names),
		Docs:           record.Docs,
		Submitter:      submitter,
		SubmittedAt:    record.CreatedAt,
		Status:         status,
	}
}

// docRecord projects the request into its Firestore document shape.
func docRecord(record *models.ChangeRequest, decisions map[string]models.Decision, status string) models.DocRecord {
	return models.DocRecord{
		RobotModel:     record.RobotModel,
		RobotID:        record.RobotID,
		Classification: record.Classification,
		Content:        record.Content,
		Why:            record.Why,
		Approvers:      append([]string(nil), record.Approvers...),
		ApproverStatus: approverStatusLines(record.Approvers, decisions, nil),
		Informed:       append([]string(nil), record.Informed...),
		Docs:           record.Docs,
		Submitter:      record.Submitter,
		Channel:        record.Channel,
		SubmittedAt:    record.CreatedAt.Format("2006-01-02 15:04:05"),
		Status:         status,
		ThreadTS:       record.ThreadTS,
	}
}
