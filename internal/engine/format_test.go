package engine

import (
	"strings"
	"testing"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

func TestFormatPct(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{nil, "n/a"},
		{domain.Pct(55), "55%"},
		{domain.Pct(33.3333), "33.33%"},
		{domain.Pct(0), "0%"},
	}
	for _, tt := range tests {
		if got := FormatPct(tt.in); got != tt.want {
			t.Errorf("FormatPct = %q, want %q", got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	a := domain.Announcement{
		Kind:     domain.KindResolved,
		MarketID: "X123",
		Title:    "Home_vs_Away",
		URL:      "https://markets.test/market?id=X123",
		Category: "Football",
		EndsIn:   "1h",
		Options:  []domain.Option{{Label: "Home", Pct: domain.Pct(55)}, {Label: "Away"}},
		Winner:   "Home",
	}
	title, body := Format(a)
	if title != "Market resolved" {
		t.Errorf("title = %q", title)
	}
	for _, want := range []string{
		`Home\_vs\_Away`,
		"Football",
		"Final pool:",
		"- Home: 55%",
		"- Away: n/a",
		"Winner: *Home*",
		"[Open market](https://markets.test/market?id=X123)",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "ends in") {
		t.Error("resolved message carries ends-in")
	}
}

func TestFormatOpenFallsBackToID(t *testing.T) {
	title, body := Format(domain.Announcement{Kind: domain.KindOpen, MarketID: "Q9", EndsIn: "3d"})
	if title != "New market" {
		t.Errorf("title = %q", title)
	}
	if !strings.HasPrefix(body, "Q9\n") || !strings.Contains(body, "ends in 3d") {
		t.Errorf("body = %q", body)
	}
}

func TestFormatLinksURLVerbatim(t *testing.T) {
	_, body := Format(domain.Announcement{
		Kind:     domain.KindOpen,
		MarketID: "x_y",
		Title:    "Derby",
		URL:      "https://markets.test/market?market_id=x_y&ref=(home)",
	})
	want := "[Open market](https://markets.test/market?market_id=x_y&ref=%28home%29)"
	if !strings.HasSuffix(body, want) {
		t.Errorf("body = %q, want suffix %q", body, want)
	}
	if strings.Count(body, "_") != 2 {
		t.Errorf("underscores outside the link target in %q", body)
	}
}
