// Package notify delivers market announcements to every configured channel
// (Telegram, Discord, Slack, Kafka, the live signal bus and the audit log).
// Messages can be filtered by event type so operators only receive the
// lifecycle events they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// Message is one notification. Destination is the chat or channel id the
// message is addressed to; senders with a fixed target ignore it.
// Announcement is nil for ad hoc operator messages.
type Message struct {
	Destination  string
	Event        string
	Title        string
	Body         string
	Announcement *domain.Announcement
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers one message.
	Send(ctx context.Context, msg Message) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier dispatches messages to one or more Senders. Notify only forwards
// messages whose event is in the allowed set.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// events whose type appears in the events slice will be forwarded by Notify.
// If events is empty, all event types are allowed.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Senders returns the names of the registered senders.
func (n *Notifier) Senders() []string {
	names := make([]string, len(n.senders))
	for i, s := range n.senders {
		names[i] = s.Name()
	}
	return names
}

// Notify sends msg to all senders if its event passes the filter.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	if len(n.events) > 0 && !n.events[msg.Event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", msg.Event),
		)
		return nil
	}
	return n.dispatch(ctx, msg)
}

// dispatch sends to every sender once. A failing sender does not stop
// delivery to the rest; failures are combined into one error.
func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", msg.Event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", msg.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
