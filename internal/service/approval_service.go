package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/robofleet/change-request-bot/internal/dto"
	"github.com/robofleet/change-request-bot/internal/models"
	"github.com/robofleet/change-request-bot/internal/repository"
	"github.com/robofleet/change-request-bot/pkg/config"
	appErrors "github.com/robofleet/change-request-bot/pkg/errors"
	"github.com/robofleet/change-request-bot/pkg/jobs"
)

// Job types dispatched through the delayed scheduler.
const (
	JobReminder    = "approval_reminder"
	JobAutoTimeout = "approval_timeout"
	JobDocReminder = "doc_reminder"
)

// Messenger is the slice of the chat gateway the approval core uses.
type Messenger interface {
	PostMessage(ctx context.Context, channel, text string, blocks []slack.Block, threadTS string) (string, error)
	PostDM(ctx context.Context, userID, text string, blocks []slack.Block) error
	PostEphemeral(ctx context.Context, channel, userID, text string) error
	UpdateMessage(ctx context.Context, channel, ts, text string, blocks []slack.Block) error
	ResolveNames(ctx context.Context, userIDs []string) map[string]string
}

// TabularLog appends or updates the one spreadsheet row per request.
type TabularLog interface {
	UpsertStatus(ctx context.Context, row models.LogRow) error
}

// DocumentStore mirrors request documents keyed by request ID.
type DocumentStore interface {
	CreateRecord(ctx context.Context, requestID int64, record models.DocRecord) error
	UpdateRecord(ctx context.Context, requestID int64, patch map[string]interface{}) error
}

type timerScheduler interface {
	EnqueueAfter(job jobs.Job, delay time.Duration) error
}

// ApprovalService owns the request lifecycle: intake, decision tracking,
// timeout sweeps and the one-shot finalization.
type ApprovalService struct {
	registry  *repository.RequestRegistry
	tracker   *repository.ApprovalTracker
	marker    *repository.FinalizationMarker
	messenger Messenger
	sheet     TabularLog
	docs      DocumentStore
	timers    timerScheduler
	metrics   *MetricsService
	logger    *zap.Logger
	validate  *validator.Validate
	cfg       config.ApprovalsConfig
}

// NewApprovalService wires the service. metrics may be nil.
func NewApprovalService(
	registry *repository.RequestRegistry,
	tracker *repository.ApprovalTracker,
	marker *repository.FinalizationMarker,
	messenger Messenger,
	sheet TabularLog,
	docs DocumentStore,
	timers timerScheduler,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg config.ApprovalsConfig,
) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		registry:  registry,
		tracker:   tracker,
		marker:    marker,
		messenger: messenger,
		sheet:     sheet,
		docs:      docs,
		timers:    timers,
		metrics:   metrics,
		logger:    logger,
		validate:  validator.New(),
		cfg:       cfg,
	}
}

// BindScheduler registers the sweep handlers on the scheduler.
func (s *ApprovalService) BindScheduler(sched *jobs.Scheduler) {
	sched.Register(JobReminder, func(ctx context.Context, job jobs.Job) {
		s.RunReminderSweep(ctx, job.RequestID)
	})
	sched.Register(JobAutoTimeout, func(ctx context.Context, job jobs.Job) {
		s.RunTimeoutSweep(ctx, job.RequestID)
	})
	sched.Register(JobDocReminder, func(ctx context.Context, job jobs.Job) {
		s.RunDocReminder(ctx, job.RequestID)
	})
}

// Submit validates a form submission, announces it, registers the request,
// mirrors it to the external stores and arms the lifecycle timers.
func (s *ApprovalService) Submit(ctx context.Context, req dto.SubmitRequest) (int64, error) {
	if err := s.validate.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change request submission")
	}
	if req.RobotModel == "" {
		// Hard precondition; the validator covers it but the registry must
		// never see an empty model regardless of tag drift.
		return 0, appErrors.Clone(appErrors.ErrValidation, "robot model is required")
	}

	threadTS, err := s.messenger.PostMessage(ctx, req.Channel, "🔧 New Change Request Submitted", channelSummaryBlocks(req), "")
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to announce change request")
	}

	record := &models.ChangeRequest{
		RobotModel:     req.RobotModel,
		RobotID:        req.RobotID,
		Classification: req.Classification,
		Content:        req.Content,
		Why:            req.Why,
		Docs:           req.Docs,
		Submitter:      req.Submitter,
		Channel:        req.Channel,
		ThreadTS:       threadTS,
		Approvers:      req.Approvers,
		Informed:       req.Informed,
	}
	requestID := s.registry.Create(record)
	record.ID = requestID
	s.metrics.IncSubmitted()

	for _, approver := range req.Approvers {
		if err := s.messenger.PostDM(ctx, approver, "📝 You have a new change request to review", approverPromptBlocks(requestID, record, "")); err != nil {
			s.logger.Sugar().Errorw("failed to DM approver", "request_id", requestID, "approver", approver, "error", err)
			s.metrics.IncCollaboratorFailure("slack")
		}
	}

	if err := s.docs.CreateRecord(ctx, requestID, docRecord(record, nil, models.StatusPending)); err != nil {
		s.logger.Sugar().Errorw("docstore create failed", "request_id", requestID, "error", err)
		s.metrics.IncCollaboratorFailure("docstore")
	}
	if err := s.sheet.UpsertStatus(ctx, logRow(record, nil, nil, models.StatusPending)); err != nil {
		s.logger.Sugar().Errorw("sheet upsert failed", "request_id", requestID, "error", err)
		s.metrics.IncCollaboratorFailure("sheets")
	}

	s.armTimer(JobReminder, requestID, s.cfg.ReminderDelay)
	s.armTimer(JobAutoTimeout, requestID, s.cfg.ResponseTimeout)

	s.logger.Sugar().Infow("change request submitted",
		"request_id", requestID, "submitter", req.Submitter, "approvers", len(req.Approvers))
	return requestID, nil
}

// RecordDecision stores an approver's explicit decision and re-evaluates
// the request. A repeat press surfaces a warning and changes nothing.
func (s *ApprovalService) RecordDecision(ctx context.Context, act dto.DecisionAction) error {
	if err := s.validate.Struct(act); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision action")
	}

	record, err := s.registry.Get(act.RequestID)
	if err != nil {
		s.notifyEphemeral(ctx, act.Channel, act.ApproverID, "⚠️ Cannot find original request info. Please contact admin.")
		return err
	}

	decision := models.DecisionDeclined
	if act.Approve {
		decision = models.DecisionApproved
	}

	if err := s.tracker.Record(act.RequestID, act.ApproverID, decision); err != nil {
		if appErrors.Is(err, appErrors.ErrAlreadyResponded) {
			existing, _ := s.tracker.Decision(act.RequestID, act.ApproverID)
			s.notifyEphemeral(ctx, act.Channel, act.ApproverID,
				fmt.Sprintf("⚠️ You have already responded (%s).", existing))
		}
		return err
	}
	s.metrics.IncDecision(decision)

	s.Evaluate(ctx, act.RequestID)

	if err := s.messenger.UpdateMessage(ctx, act.Channel, act.MessageTS,
		"📝 You have a new change request to review",
		approverPromptBlocks(act.RequestID, record, decision)); err != nil {
		s.logger.Sugar().Errorw("failed to relabel decision buttons", "request_id", act.RequestID, "error", err)
		s.metrics.IncCollaboratorFailure("slack")
	}
	s.notifyEphemeral(ctx, act.Channel, act.ApproverID,
		fmt.Sprintf("You have *%s* this change request.", decision))
	return nil
}

// ConfirmDocs marks the documentation as updated and records the final
// lifecycle status in the external mirrors.
func (s *ApprovalService) ConfirmDocs(ctx context.Context, act dto.DocConfirmAction) error {
	if err := s.validate.Struct(act); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirmation action")
	}

	record, err := s.registry.Get(act.RequestID)
	if err != nil {
		s.notifyEphemeral(ctx, act.Channel, act.UserID, "⚠️ Cannot find original request info. Please contact admin.")
		return err
	}
	if err := s.registry.SetDocConfirmed(act.RequestID); err != nil {
		return err
	}

	names := s.messenger.ResolveNames(ctx, append([]string{act.UserID, record.Submitter}, record.Approvers...))
	confirmer := names[act.UserID]
	decisions := s.tracker.Decisions(act.RequestID)
	status := fmt.Sprintf("✅ Final Documentation Updated (by %s, %s)", confirmer, time.Now().Format("2006-01-02"))

	if err := s.sheet.UpsertStatus(ctx, logRow(record, decisions, names, status)); err != nil {
		s.logger.Sugar().Errorw("sheet upsert failed", "request_id", act.RequestID, "error", err)
		s.metrics.IncCollaboratorFailure("sheets")
	}
	if err := s.docs.UpdateRecord(ctx, act.RequestID, map[string]interface{}{
		"status":       status,
		"docConfirmed": true,
	}); err != nil {
		s.logger.Sugar().Errorw("docstore update failed", "request_id", act.RequestID, "error", err)
		s.metrics.IncCollaboratorFailure("docstore")
	}

	s.notifyEphemeral(ctx, act.Channel, act.UserID, "✅ You confirmed the documentation update. Thank you!")
	if _, err := s.messenger.PostMessage(ctx, record.Channel,
		fmt.Sprintf("📄 <@%s> confirmed documentation updated for request *%d* on %s.\n\nChange is now fully executed and logged.",
			act.UserID, act.RequestID, time.Now().Format("2006-01-02")),
		nil, record.ThreadTS); err != nil {
		s.logger.Sugar().Errorw("failed to post confirmation note", "request_id", act.RequestID, "error", err)
		s.metrics.IncCollaboratorFailure("slack")
	}

	s.logger.Sugar().Infow("documentation confirmed", "request_id", act.RequestID, "user", act.UserID)
	return nil
}

func (s *ApprovalService) armTimer(jobType string, requestID int64, delay time.Duration) {
	if s.timers == nil {
		return
	}
	if err := s.timers.EnqueueAfter(jobs.Job{Type: jobType, RequestID: requestID}, delay); err != nil {
		s.logger.Sugar().Errorw("failed to arm timer", "type", jobType, "request_id", requestID, "error", err)
	}
}

func (s *ApprovalService) notifyEphemeral(ctx context.Context, channel, userID, text string) {
	if err := s.messenger.PostEphemeral(ctx, channel, userID, text); err != nil {
		s.logger.Sugar().Errorw("failed to post ephemeral", "user", userID, "error", err)
		s.metrics.IncCollaboratorFailure("slack")
	}
}
