package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// Embed colours per announcement kind.
var discordColors = map[domain.AnnouncementKind]int{
	domain.KindOpen:     0x2ecc71,
	domain.KindClosed:   0xe67e22,
	domain.KindResolved: 0x3498db,
	domain.KindTrending: 0xe91e63,
}

type discordEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Color       int    `json:"color,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

// DiscordSender posts announcements to a Discord webhook as embeds. The
// webhook fixes the channel, so the message destination is ignored.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message.
func (d *DiscordSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(discordMessage(msg))
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord: status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}

// discordMessage renders announcements as a linked embed and ad hoc
// messages as plain content.
func discordMessage(msg Message) discordPayload {
	ann := msg.Announcement
	if ann == nil {
		content := msg.Body
		if msg.Title != "" {
			content = "**" + msg.Title + "**\n" + msg.Body
		}
		return discordPayload{Content: content}
	}
	return discordPayload{Embeds: []discordEmbed{{
		Title:       msg.Title,
		Description: msg.Body,
		URL:         ann.URL,
		Color:       discordColors[ann.Kind],
		Timestamp:   ann.At.UTC().Format(time.RFC3339),
	}}}
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
