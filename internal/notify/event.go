package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// Event is the structured form of a Message published to machine consumers
// (Kafka, the signal bus, websocket clients).
type Event struct {
	Event        string               `json:"event"`
	Title        string               `json:"title"`
	Body         string               `json:"body"`
	Destination  string               `json:"destination,omitempty"`
	Announcement *domain.Announcement `json:"announcement,omitempty"`
	SentAt       time.Time            `json:"sent_at"`
}

// encodeEvent serializes msg as an Event stamped with now.
func encodeEvent(msg Message, now time.Time) ([]byte, error) {
	data, err := json.Marshal(Event{
		Event:        msg.Event,
		Title:        msg.Title,
		Body:         msg.Body,
		Destination:  msg.Destination,
		Announcement: msg.Announcement,
		SentAt:       now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("notify: encode event: %w", err)
	}
	return data, nil
}

// eventKey is the partition/routing key for msg.
func eventKey(msg Message) string {
	if msg.Announcement != nil && msg.Announcement.MarketID != "" {
		return msg.Announcement.MarketID
	}
	return msg.Event
}
