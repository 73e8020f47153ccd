package notify

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// AuditSender records every delivered message in the audit log.
type AuditSender struct {
	store domain.AuditStore
}

// NewAuditSender creates an AuditSender over store.
func NewAuditSender(store domain.AuditStore) *AuditSender {
	return &AuditSender{store: store}
}

// Send writes one audit row.
func (a *AuditSender) Send(ctx context.Context, msg Message) error {
	detail := map[string]any{
		"title":       msg.Title,
		"destination": msg.Destination,
	}
	marketID := ""
	if ann := msg.Announcement; ann != nil {
		marketID = ann.MarketID
		detail["announcement_id"] = ann.ID
		detail["url"] = ann.URL
		if ann.Winner != "" {
			detail["winner"] = ann.Winner
		}
		if len(ann.Options) > 0 {
			detail["options"] = ann.Options
		}
	}
	if err := a.store.Log(ctx, msg.Event, marketID, detail); err != nil {
		return fmt.Errorf("audit: log %s: %w", msg.Event, err)
	}
	return nil
}

// Name returns the sender identifier.
func (a *AuditSender) Name() string {
	return "audit"
}
