package gateway

import (
	"context"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/robofleet/change-request-bot/pkg/cache"
)

// SlackGateway wraps the Slack Web API with the narrow surface the
// approval core needs: channel/thread posts, DMs, ephemerals, message
// edits, modal opening and display-name resolution.
type SlackGateway struct {
	client *slack.Client
	names  *cache.Names
	logger *zap.Logger
}

// New builds a gateway for the given bot token. names may be nil, which
// disables display-name caching.
func New(botToken string, names *cache.Names, logger *zap.Logger) *SlackGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackGateway{
		client: slack.New(botToken),
		names:  names,
		logger: logger,
	}
}

// PostMessage posts to a channel, optionally inside a thread. Returns the
// message timestamp, which anchors the request thread for later follow-ups.
func (g *SlackGateway) PostMessage(ctx context.Context, channel, text string, blocks []slack.Block, threadTS string) (string, error) {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	_, ts, err := g.client.PostMessageContext(ctx, channel, opts...)
	return ts, err
}

// PostDM opens (or reuses) the IM conversation with a user and posts there.
func (g *SlackGateway) PostDM(ctx context.Context, userID, text string, blocks []slack.Block) error {
	channel, _, _, err := g.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users:    []string{userID},
		ReturnIM: true,
	})
	if err != nil {
		return err
	}
	_, err = g.PostMessage(ctx, channel.ID, text, blocks, "")
	return err
}

// PostEphemeral sends a message only the given user can see.
func (g *SlackGateway) PostEphemeral(ctx context.Context, channel, userID, text string) error {
	_, err := g.client.PostEphemeralContext(ctx, channel, userID, slack.MsgOptionText(text, false))
	return err
}

// UpdateMessage rewrites an existing message in place.
func (g *SlackGateway) UpdateMessage(ctx context.Context, channel, ts, text string, blocks []slack.Block) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	_, _, _, err := g.client.UpdateMessageContext(ctx, channel, ts, opts...)
	return err
}

// OpenModal opens a modal view in response to a shortcut trigger.
func (g *SlackGateway) OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error {
	_, err := g.client.OpenViewContext(ctx, triggerID, view)
	return err
}

// ResolveNames maps user IDs to display names. Lookup failures fall back
// to the raw ID so a broken profile never aborts a finalization.
func (g *SlackGateway) ResolveNames(ctx context.Context, userIDs []string) map[string]string {
	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if _, done := out[id]; done {
			continue
		}
		if name, ok := g.names.Get(ctx, id); ok {
			out[id] = name
			continue
		}
		user, err := g.client.GetUserInfoContext(ctx, id)
		if err != nil {
			g.logger.Sugar().Warnw("display name lookup failed", "user_id", id, "error", err)
			out[id] = id
			continue
		}
		name := user.Profile.DisplayName
		if name == "" {
			name = user.RealName
		}
		if name == "" {
			name = id
		}
		out[id] = name
		_ = g.names.Set(ctx, id, name)
	}
	return out
}
