package service

import (
	"context"
	"fmt"

	"github.com/robofleet/change-request-bot/internal/models"
)

// RunReminderSweep DMs every approver still lacking a decision, once per
// approver. Tolerates the record having finalized or vanished: the timer
// always fires and this handler decides whether there is anything to do.
func (s *ApprovalService) RunReminderSweep(ctx context.Context, requestID int64) {
	record, err := s.registry.Get(requestID)
	if err != nil {
		s.logger.Sugar().Debugw("reminder sweep skipped, record missing", "request_id", requestID)
		return
	}

	for _, approver := range record.Approvers {
		if _, responded := s.tracker.Decision(requestID, approver); responded {
			continue
		}
		if !s.registry.MarkReminded(requestID, approver) {
			continue
		}
		if err := s.messenger.PostDM(ctx, approver, "⏰ Reminder: You have a pending change request to review.", nil); err != nil {
			s.logger.Sugar().Errorw("failed to send reminder", "request_id", requestID, "approver", approver, "error", err)
			s.metrics.IncCollaboratorFailure("slack")
			continue
		}
		s.logger.Sugar().Infow("reminder sent", "request_id", requestID, "approver", approver)
	}
}

// RunTimeoutSweep auto-marks every silent approver as no_response, tells
// them so, and re-evaluates the request. MarkNoResponse never clobbers a
// decision that beat the timer.
func (s *ApprovalService) RunTimeoutSweep(ctx context.Context, requestID int64) {
	record, err := s.registry.Get(requestID)
	if err != nil {
		s.logger.Sugar().Debugw("timeout sweep skipped, record missing", "request_id", requestID)
		return
	}

	for _, approver := range record.Approvers {
		if !s.tracker.MarkNoResponse(requestID, approver) {
			continue
		}
		s.metrics.IncDecision(models.DecisionNoResponse)
		s.logger.Sugar().Infow("approver auto-marked no_response", "request_id", requestID, "approver", approver)
		if err := s.messenger.PostDM(ctx, approver,
			"⚠️ You did not respond to the change request in time and have been marked as *No Response*.", nil); err != nil {
			s.logger.Sugar().Errorw("failed to notify auto-marked approver", "request_id", requestID, "approver", approver, "error", err)
			s.metrics.IncCollaboratorFailure("slack")
		}
	}

	s.Evaluate(ctx, requestID)
}

// RunDocReminder nudges the submitter of an approved request to confirm
// the documentation update, unless it was already confirmed.
func (s *ApprovalService) RunDocReminder(ctx context.Context, requestID int64) {
	record, err := s.registry.Get(requestID)
	if err != nil {
		s.logger.Sugar().Debugw("doc reminder skipped, record missing", "request_id", requestID)
		return
	}
	if record.DocConfirmed {
		return
	}

	if err := s.messenger.PostDM(ctx, record.Submitter,
		fmt.Sprintf("⏰ Reminder: Please confirm the documentation has been updated for your approved change request *%d*. Click the button in the previous message if you have already done so.", requestID), nil); err != nil {
		s.logger.Sugar().Errorw("failed to send doc reminder", "request_id", requestID, "error", err)
		s.metrics.IncCollaboratorFailure("slack")
		return
	}
	s.logger.Sugar().Infow("doc update reminder sent", "request_id", requestID, "submitter", record.Submitter)
}
