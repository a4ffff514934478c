// Package slack posts print notifications to Slack.
package slack

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

var ErrNoToken = errors.New("no slack access token configured")

type Client struct {
	api    *slack.Client
	logger *zap.Logger
}

// New returns a client authenticated with token. Extra options are passed to
// the underlying Slack client.
func New(token string, opts ...slack.Option) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	return &Client{
		api:    slack.New(token, opts...),
		logger: zap.L(),
	}, nil
}

// Post sends text to channel and returns the message timestamp, which doubles
// as the thread handle. An empty channel is a no-op.
func (c *Client) Post(ctx context.Context, channel, text string) (string, error) {
	return c.post(ctx, channel, text)
}

// PostReply sends text as a reply in the thread started by thread.
func (c *Client) PostReply(ctx context.Context, channel, thread, text string) (string, error) {
	return c.post(ctx, channel, text, slack.MsgOptionTS(thread))
}

// Edit replaces the text of an existing message.
func (c *Client) Edit(ctx context.Context, channel, ts, text string) error {
	if channel == "" {
		return nil
	}
	if _, _, _, err := c.api.UpdateMessageContext(ctx, channel, ts, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("editing slack message %s: %w", ts, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, channel, text string, opts ...slack.MsgOption) (string, error) {
	if channel == "" {
		c.logger.Debug("no slack channel configured, not posting", zap.String("text", text))
		return "", nil
	}
	opts = append([]slack.MsgOption{slack.MsgOptionText(text, false)}, opts...)
	_, ts, err := c.api.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return "", fmt.Errorf("posting to slack channel %s: %w", channel, err)
	}
	return ts, nil
}

// Disabled is used when no token is configured. Every call is a no-op.
type Disabled struct{}

func (Disabled) Post(context.Context, string, string) (string, error) {
	return "", nil
}

func (Disabled) PostReply(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (Disabled) Edit(context.Context, string, string, string) error {
	return nil
}
