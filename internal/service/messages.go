package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/slack-go/slack"

	"github.com/robofleet/change-request-bot/internal/dto"
	"github.com/robofleet/change-request-bot/internal/models"
)

func mentions(userIDs []string) string {
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		out = append(out, fmt.Sprintf("<@%s>", id))
	}
	return strings.Join(out, ", ")
}

func robotLabel(model, id string) string {
	if id == "" {
		return model
	}
	return fmt.Sprintf("%s (%s)", model, id)
}

func orDash(v string) string {
	if v == "" {
		return "None"
	}
	return v
}

// channelSummaryBlocks renders the announcement posted to the discussion
// channel; its timestamp becomes the request thread anchor.
func channelSummaryBlocks(req dto.SubmitRequest) []slack.Block {
	audience := append(append([]string{}, req.Approvers...), req.Informed...)
	text := fmt.Sprintf(
		"Hi! Here's a request submitted by <@%s>! %s *Please kindly look through it and respond accordingly.*\n\n"+
			" •  *Robot Model (with ID)*: %s\n"+
			" •  *Request Classification*: %s\n"+
			" •  *Request Content*: %s\n"+
			" •  *Why this change is needed*: %s\n"+
			" •  *People to Approve*: %s\n"+
			" •  *Related Documentation*: %s\n\n"+
			"Result and updates will be recorded in this thread. Please also feel free to discuss in thread. Thank you!!",
		req.Submitter, mentions(audience),
		robotLabel(req.RobotModel, req.RobotID),
		req.Classification, req.Content, req.Why,
		mentions(req.Approvers), orDash(req.Docs))

	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}
}

// approverPromptBlocks renders the DM each approver gets. When decided is
// non-empty the pressed button is relabeled to show the stored decision.
func approverPromptBlocks(requestID int64, record *models.ChangeRequest, decided models.Decision) []slack.Block {
	detail := fmt.Sprintf("*Robot*: %s\n*Classification*: %s\n*Content*: %s\n*Why*: %s\n*Docs*: %s",
		robotLabel(record.RobotModel, record.RobotID),
		record.Classification, record.Content, record.Why, orDash(record.Docs))

	value := strconv.FormatInt(requestID, 10)

	approveLabel := "✅ Approve"
	declineLabel := "❌ Decline"
	switch decided {
	case models.DecisionApproved:
		approveLabel = "✅ Approved"
	case models.DecisionDeclined:
		declineLabel = "❌ Declined"
	}

	approve := slack.NewButtonBlockElement(dto.ActionApprove, value,
		slack.NewTextBlockObject(slack.PlainTextType, approveLabel, true, false))
	decline := slack.NewButtonBlockElement(dto.ActionDecline, value,
		slack.NewTextBlockObject(slack.PlainTextType, declineLabel, true, false))
	if decided == "" {
		approve = approve.WithStyle(slack.StylePrimary)
		decline = decline.WithStyle(slack.StyleDanger)
	}

	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, detail, false, false), nil, nil),
		slack.NewActionBlock(fmt.Sprintf("actions_block_%d", requestID), approve, decline),
	}
}

// docConfirmBlocks renders the submitter's approval DM with the
// documentation-confirmed button.
func docConfirmBlocks(requestID int64) []slack.Block {
	text := "✅ *Your change request has been approved by all approvers!*\n\n" +
		"A final change notice has been posted in channel.\n\n" +
		"You may now proceed with implementing the change and updating the documentation.\n\n" +
		"When you're done, please confirm below:"

	confirm := slack.NewButtonBlockElement(dto.ActionConfirmDocs, strconv.FormatInt(requestID, 10),
		slack.NewTextBlockObject(slack.PlainTextType, "📄 Confirm Documentation Updated", true, false)).
		WithStyle(slack.StylePrimary)

	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
		slack.NewActionBlock("", confirm),
	}
}

// approvedSummaryBlocks renders the thread summary for an approved request.
func approvedSummaryBlocks(record *models.ChangeRequest) []slack.Block {
	text := fmt.Sprintf("*Robot:* %s\n*Classification:* %s\n*Content:* %s\n*Why:* %s\n*Docs:* %s\n*Approved by:* %s\n*Informed:* %s",
		robotLabel(record.RobotModel, record.RobotID),
		record.Classification, record.Content, record.Why, orDash(record.Docs),
		mentions(record.Approvers), mentions(record.Informed))

	return []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil),
	}
}
