package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/robofleet/change-request-bot/internal/dto"
	appErrors "github.com/robofleet/change-request-bot/pkg/errors"
	"github.com/robofleet/change-request-bot/pkg/response"
)

type approvalService interface {
	Submit(ctx context.Context, req dto.SubmitRequest) (int64, error)
	RecordDecision(ctx context.Context, act dto.DecisionAction) error
	ConfirmDocs(ctx context.Context, act dto.DocConfirmAction) error
}

type modalOpener interface {
	OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
}

// SlackHandler is the interaction webhook boundary: it acknowledges Slack
// within the deadline, normalizes the duck-typed payloads into tagged
// variants and hands them to the approval core.
type SlackHandler struct {
	service approvalService
	modals  modalOpener
	logger  *zap.Logger
}

// NewSlackHandler builds the handler.
func NewSlackHandler(service approvalService, modals modalOpener, logger *zap.Logger) *SlackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackHandler{service: service, modals: modals, logger: logger}
}

// Interactions handles every interactive payload: the shortcut opening the
// intake modal, the modal submission, and the three button actions.
func (h *SlackHandler) Interactions(c *gin.Context) {
	payload := c.PostForm("payload")
	if payload == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing interaction payload"))
		return
	}

	var cb slack.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "malformed interaction payload"))
		return
	}

	ctx := c.Request.Context()

	switch cb.Type {
	case slack.InteractionTypeShortcut:
		if cb.CallbackID == dto.ShortcutNewChangeRequest {
			if err := h.modals.OpenModal(ctx, cb.TriggerID, NewChangeRequestModal(cb.User.ID)); err != nil {
				h.logger.Sugar().Errorw("failed to open intake modal", "user", cb.User.ID, "error", err)
			}
		}
		c.Status(http.StatusOK)

	case slack.InteractionTypeViewSubmission:
		if cb.View.CallbackID != dto.CallbackChangeRequest {
			c.Status(http.StatusOK)
			return
		}
		req := submissionToDTO(&cb)
		if _, err := h.service.Submit(ctx, req); err != nil {
			// The modal is already closed; a failed submission is logged
			// and the request is simply never created.
			h.logger.Sugar().Errorw("change request submission rejected", "submitter", req.Submitter, "error", err)
		}
		c.Status(http.StatusOK)

	case slack.InteractionTypeBlockActions:
		h.handleBlockActions(ctx, &cb)
		c.Status(http.StatusOK)

	default:
		c.Status(http.StatusOK)
	}
}

func (h *SlackHandler) handleBlockActions(ctx context.Context, cb *slack.InteractionCallback) {
	for _, action := range cb.ActionCallback.BlockActions {
		switch action.ActionID {
		case dto.ActionApprove, dto.ActionDecline:
			requestID, err := strconv.ParseInt(action.Value, 10, 64)
			if err != nil {
				h.logger.Sugar().Errorw("malformed request id in action value", "value", action.Value)
				continue
			}
			act := dto.DecisionAction{
				RequestID:  requestID,
				ApproverID: cb.User.ID,
				Approve:    action.ActionID == dto.ActionApprove,
				Channel:    cb.Channel.ID,
				MessageTS:  cb.Message.Timestamp,
			}
			if err := h.service.RecordDecision(ctx, act); err != nil {
				// AlreadyResponded and NotFound are surfaced to the user by
				// the service; nothing left to do here but log.
				h.logger.Sugar().Infow("decision not recorded", "request_id", requestID, "approver", cb.User.ID, "error", err)
			}

		case dto.ActionConfirmDocs:
			requestID, err := strconv.ParseInt(action.Value, 10, 64)
			if err != nil {
				h.logger.Sugar().Errorw("malformed request id in action value", "value", action.Value)
				continue
			}
			act := dto.DocConfirmAction{
				RequestID: requestID,
				UserID:    cb.User.ID,
				Channel:   cb.Channel.ID,
			}
			if err := h.service.ConfirmDocs(ctx, act); err != nil {
				h.logger.Sugar().Infow("doc confirmation not applied", "request_id", requestID, "user", cb.User.ID, "error", err)
			}
		}
	}
}

// submissionToDTO flattens the modal state into the submission variant.
func submissionToDTO(cb *slack.InteractionCallback) dto.SubmitRequest {
	vals := cb.View.State.Values

	modelValues := []string{}
	for _, opt := range vals[dto.BlockRobotModel][dto.InputAction].SelectedOptions {
		modelValues = append(modelValues, opt.Value)
	}

	return dto.SubmitRequest{
		RobotModel:     strings.Join(modelValues, ", "),
		RobotID:        strings.ToUpper(vals[dto.BlockRobotID][dto.InputAction].Value),
		Classification: vals[dto.BlockClassification][dto.InputAction].SelectedOption.Value,
		Content:        vals[dto.BlockContent][dto.InputAction].Value,
		Why:            vals[dto.BlockWhy][dto.InputAction].Value,
		Docs:           vals[dto.BlockDocs][dto.InputAction].Value,
		Submitter:      cb.View.PrivateMetadata,
		Channel:        vals[dto.BlockChannel][dto.InputAction].SelectedConversation,
		Approvers:      vals[dto.BlockApprovers][dto.InputAction].SelectedUsers,
		Informed:       vals[dto.BlockInform][dto.InputAction].SelectedUsers,
	}
}
