package handler

import (
	"github.com/slack-go/slack"

	"github.com/robofleet/change-request-bot/internal/dto"
)

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func staticOption(value string) *slack.OptionBlockObject {
	return slack.NewOptionBlockObject(value, plainText(value), nil)
}

// NewChangeRequestModal builds the intake form. The submitter's user ID
// rides in private metadata so the view submission can attribute the
// request without another lookup.
func NewChangeRequestModal(submitterID string) slack.ModalViewRequest {
	robotModel := slack.NewInputBlock(dto.BlockRobotModel,
		plainText("Robot model"), nil,
		slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeStatic, nil, dto.InputAction,
			staticOption("TPV"), staticOption("TPr"), staticOption("TMx"),
			staticOption("TSP"), staticOption("TS"), staticOption("Other")))

	robotID := slack.NewInputBlock(dto.BlockRobotID,
		plainText("Specific robot number"), nil,
		slack.NewPlainTextInputBlockElement(plainText("e.g., TPV001, TPr002"), dto.InputAction))
	robotID.Optional = true

	classification := slack.NewInputBlock(dto.BlockClassification,
		plainText("Change Classification"), nil,
		slack.NewOptionsSelectBlockElement(slack.OptTypeStatic, nil, dto.InputAction,
			staticOption("Scope"), staticOption("Design-Mech"), staticOption("Design-Elec")))

	content := slack.NewPlainTextInputBlockElement(nil, dto.InputAction)
	content.Multiline = true
	contentBlock := slack.NewInputBlock(dto.BlockContent, plainText("Change Content"), nil, content)

	why := slack.NewPlainTextInputBlockElement(nil, dto.InputAction)
	why.Multiline = true
	whyBlock := slack.NewInputBlock(dto.BlockWhy, plainText("Why is this change needed?"), nil, why)

	approvers := slack.NewInputBlock(dto.BlockApprovers,
		plainText("Who should confirm/decide/accountable?"), nil,
		slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeUser,
			plainText("Select users who must approve"), dto.InputAction))

	inform := slack.NewInputBlock(dto.BlockInform,
		plainText("Who should be informed?"), nil,
		slack.NewOptionsMultiSelectBlockElement(slack.MultiOptTypeUser,
			plainText("Select users to be informed"), dto.InputAction))
	inform.Optional = true

	channelSelect := slack.NewOptionsSelectBlockElement(slack.OptTypeConversations, nil, dto.InputAction)
	channelSelect.DefaultToCurrentConversation = true
	channelBlock := slack.NewInputBlock(dto.BlockChannel,
		plainText("Discussion should happen in which Slack channel?"), nil, channelSelect)

	docs := slack.NewInputBlock(dto.BlockDocs,
		plainText("Related documentation (Google Drive link)"), nil,
		slack.NewPlainTextInputBlockElement(plainText("https://drive.google.com/..."), dto.InputAction))
	docs.Optional = true

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      dto.CallbackChangeRequest,
		PrivateMetadata: submitterID,
		Title:           plainText("New Change Request"),
		Submit:          plainText("Submit"),
		Close:           plainText("Cancel"),
		Blocks: slack.Blocks{BlockSet: []slack.Block{
			robotModel, robotID, classification, contentBlock, whyBlock,
			approvers, inform, channelBlock, docs,
		}},
	}
}
