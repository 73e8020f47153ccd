package domain

import "time"

// AnnouncementKind identifies which lifecycle event an announcement reports.
// The values double as notifier event names.
type AnnouncementKind string

const (
	KindOpen     AnnouncementKind = "market_open"
	KindClosed   AnnouncementKind = "market_closed"
	KindResolved AnnouncementKind = "market_resolved"
	KindTrending AnnouncementKind = "market_trending"
)

// Announcement is one fired transition, emitted at most once per market and kind.
type Announcement struct {
	ID       string           `json:"id"`
	Kind     AnnouncementKind `json:"kind"`
	MarketID string           `json:"market_id"`
	Title    string           `json:"title"`
	URL      string           `json:"url"`
	Category string           `json:"category,omitempty"`
	EndsIn   string           `json:"ends_in,omitempty"`
	Options  []Option         `json:"options,omitempty"`
	Winner   string           `json:"winner,omitempty"`
	At       time.Time        `json:"at"`
}
