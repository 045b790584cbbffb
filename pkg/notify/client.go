// Package notify implements the reference notifier extension: a built-in
// analytic extension that subscribes to document lifecycle events and
// posts Slack notifications, demonstrating the full manifest/subscribe/
// publish/route lifecycle a real analytic extension (ACH scoring,
// contradiction detection) would also follow.
//
// The Block Kit client and message builders are domain-agnostic
// formatting code reused as-is; the triggering events are document
// pipeline lifecycle (ingested/complete/failed/ocr.escalated) rather
// than anything alert-session specific, and there is no "message
// originated in Slack" thread lookup since docintel has no analogous
// concept to thread onto.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"
)

// Client is a thin wrapper around the slack-go SDK.
type Client struct {
	api       *goslack.Client
	channelID string
	logger    *slog.Logger
}

// NewClient creates a new Slack API client.
func NewClient(token, channelID string) *Client {
	return &Client{
		api:       goslack.New(token),
		channelID: channelID,
		logger:    slog.Default().With("component", "notify-client"),
	}
}

// NewClientWithAPIURL creates a Slack API client that targets a custom API
// URL. Useful for testing with a mock server.
func NewClientWithAPIURL(token, channelID, apiURL string) *Client {
	return &Client{
		api:       goslack.New(token, goslack.OptionAPIURL(apiURL)),
		channelID: channelID,
		logger:    slog.Default().With("component", "notify-client"),
	}
}

// PostMessage sends a message to the configured channel.
func (c *Client) PostMessage(ctx context.Context, blocks []goslack.Block, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []goslack.MsgOption{goslack.MsgOptionBlocks(blocks...)}
	_, _, err := c.api.PostMessageContext(ctx, c.channelID, opts...)
	if err != nil {
		return fmt.Errorf("chat.postMessage failed: %w", err)
	}
	return nil
}
