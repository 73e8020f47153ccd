package notify

import (
	"context"
	"fmt"
	"regexp"

	"github.com/slack-go/slack"
)

// SlackSender posts to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
}

// NewSlackSender creates a SlackSender for the given incoming webhook URL.
func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{webhookURL: webhookURL}
}

// markdownLink matches [text](url) inline links.
var markdownLink = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)

// Send posts the message. Slack mrkdwn uses single asterisks for bold and
// <url|text> for links.
func (s *SlackSender) Send(ctx context.Context, msg Message) error {
	text := slackText(msg)
	if err := slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{Text: text}); err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

func slackText(msg Message) string {
	body := markdownLink.ReplaceAllString(msg.Body, "<$2|$1>")
	if msg.Title == "" {
		return body
	}
	return fmt.Sprintf("*%s*\n%s", msg.Title, body)
}

// Name returns the sender identifier.
func (s *SlackSender) Name() string {
	return "slack"
}
