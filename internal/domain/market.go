package domain

import (
	"strings"
	"time"
)

// MarketStatus represents the lifecycle state of a market. The zero value
// (StatusUnknown) is only used before a record exists and is never stored.
type MarketStatus string

const (
	StatusUnknown  MarketStatus = ""
	StatusOpen     MarketStatus = "open"
	StatusClosed   MarketStatus = "closed"
	StatusResolved MarketStatus = "resolved"
)

// Rank orders statuses along the lifecycle so callers can enforce monotonic
// advancement. Unknown statuses rank below open.
func (s MarketStatus) Rank() int {
	switch s {
	case StatusOpen:
		return 1
	case StatusClosed:
		return 2
	case StatusResolved:
		return 3
	default:
		return 0
	}
}

// Valid reports whether s is one of the stored lifecycle statuses.
func (s MarketStatus) Valid() bool {
	return s.Rank() > 0
}

// Advance returns the later of s and next. A status never moves backwards.
func (s MarketStatus) Advance(next MarketStatus) MarketStatus {
	if next.Rank() > s.Rank() {
		return next
	}
	return s
}

// ParseStatus maps loosely formatted status text to a MarketStatus.
func ParseStatus(raw string) MarketStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "open", "active", "live":
		return StatusOpen
	case "closed", "locked", "pending":
		return StatusClosed
	case "resolved", "settled", "finalized":
		return StatusResolved
	default:
		return StatusUnknown
	}
}

// Option is one outcome of a market. Pct is nil when the percentage could not
// be extracted.
type Option struct {
	Label string   `json:"label"`
	Pct   *float64 `json:"pct"`
}

// Pct returns a pointer to v, for building options in literals.
func Pct(v float64) *float64 {
	return &v
}

// CloneOptions returns a deep copy of opts so frozen snapshots never share
// backing storage with later scrapes.
func CloneOptions(opts []Option) []Option {
	if opts == nil {
		return nil
	}
	out := make([]Option, len(opts))
	for i, o := range opts {
		out[i] = Option{Label: o.Label}
		if o.Pct != nil {
			out[i].Pct = Pct(*o.Pct)
		}
	}
	return out
}

// Summary is a best-effort view of one market as it appears on a list page.
// Only ID and URL are guaranteed.
type Summary struct {
	ID       string   `json:"id"`
	URL      string   `json:"url"`
	Title    string   `json:"title,omitempty"`
	Category string   `json:"category,omitempty"`
	EndsIn   string   `json:"ends_in,omitempty"`
	Options  []Option `json:"options,omitempty"`
}

// Lists is the result of one List Source call. Both sections may be empty on
// transient failure; that never means zero markets exist.
type Lists struct {
	Active   []Summary `json:"active"`
	Trending []Summary `json:"trending"`
}

// Snapshot is a best-effort view of one market's detail page.
type Snapshot struct {
	ID        string       `json:"id"`
	URL       string       `json:"url"`
	Title     string       `json:"title"`
	Status    MarketStatus `json:"status"`
	Options   []Option     `json:"options"`
	Winner    string       `json:"winner,omitempty"`
	Category  string       `json:"category,omitempty"`
	EndsIn    string       `json:"ends_in,omitempty"`
	CloseTime *time.Time   `json:"close_time,omitempty"`
}

// SeenState is the most recent rich observation of a market while it was open.
type SeenState struct {
	Title    string   `json:"title"`
	Category string   `json:"category,omitempty"`
	EndsIn   string   `json:"ends_in,omitempty"`
	Options  []Option `json:"options"`
}

// ClosedSnapshot is the final pool captured once, on the tick a market is
// first observed closed.
type ClosedSnapshot struct {
	Options    []Option  `json:"options"`
	CapturedAt time.Time `json:"captured_at"`
}

// Record is the per-market unit of the ledger.
type Record struct {
	ID           string       `json:"id"`
	URL          string       `json:"url"`
	Title        string       `json:"title,omitempty"`
	Status       MarketStatus `json:"status"`
	LastObserved MarketStatus `json:"last_observed,omitempty"`

	AnnouncedOpen     bool `json:"announced_open"`
	AnnouncedClosed   bool `json:"announced_closed"`
	AnnouncedResolved bool `json:"announced_resolved"`
	WasTrending       bool `json:"was_trending"`

	LastSeen       *SeenState      `json:"last_seen,omitempty"`
	ClosedSnapshot *ClosedSnapshot `json:"closed_snapshot,omitempty"`
	Winner         string          `json:"winner,omitempty"`

	MissingCount int  `json:"missing_count"`
	Retired      bool `json:"retired"`

	FirstSeenAt time.Time `json:"first_seen_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FinalOptions returns the option list used by closed and resolved
// announcements: the frozen closed snapshot, then the last open observation,
// then the given fallback.
func (r Record) FinalOptions(fallback []Option) []Option {
	if r.ClosedSnapshot != nil && len(r.ClosedSnapshot.Options) > 0 {
		return r.ClosedSnapshot.Options
	}
	if r.LastSeen != nil && len(r.LastSeen.Options) > 0 {
		return r.LastSeen.Options
	}
	return fallback
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := r
	if r.LastSeen != nil {
		ls := *r.LastSeen
		ls.Options = CloneOptions(r.LastSeen.Options)
		out.LastSeen = &ls
	}
	if r.ClosedSnapshot != nil {
		cs := *r.ClosedSnapshot
		cs.Options = CloneOptions(r.ClosedSnapshot.Options)
		out.ClosedSnapshot = &cs
	}
	return out
}
