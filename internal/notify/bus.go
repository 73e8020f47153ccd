package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// AnnouncementsChannel is the signal-bus channel and stream that carry every
// delivered announcement. The websocket hub subscribes to it.
const AnnouncementsChannel = "marketwatch:announcements"

// BusSender publishes messages on the signal bus for live subscribers and
// appends them to a stream for late readers.
type BusSender struct {
	bus domain.SignalBus
}

// NewBusSender creates a BusSender over bus.
func NewBusSender(bus domain.SignalBus) *BusSender {
	return &BusSender{bus: bus}
}

// Send publishes and appends msg.
func (b *BusSender) Send(ctx context.Context, msg Message) error {
	payload, err := encodeEvent(msg, time.Now())
	if err != nil {
		return err
	}
	if err := b.bus.Publish(ctx, AnnouncementsChannel, payload); err != nil {
		return fmt.Errorf("bus: publish: %w", err)
	}
	if err := b.bus.StreamAppend(ctx, AnnouncementsChannel, payload); err != nil {
		return fmt.Errorf("bus: stream append: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (b *BusSender) Name() string {
	return "bus"
}
