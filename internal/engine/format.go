package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

var headlines = map[domain.AnnouncementKind]string{
	domain.KindOpen:     "New market",
	domain.KindClosed:   "Market closed",
	domain.KindResolved: "Market resolved",
	domain.KindTrending: "Trending market",
}

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"`", "\\`",
	"[", "\\[",
)

// Format renders a as a Markdown title and body.
func Format(a domain.Announcement) (title, body string) {
	title = headlines[a.Kind]
	if title == "" {
		title = string(a.Kind)
	}

	var b strings.Builder
	name := a.Title
	if name == "" {
		name = a.MarketID
	}
	b.WriteString(escapeMarkdown(name))
	b.WriteByte('\n')

	var meta []string
	if a.Category != "" {
		meta = append(meta, escapeMarkdown(a.Category))
	}
	if a.EndsIn != "" && a.Kind != domain.KindResolved {
		meta = append(meta, "ends in "+escapeMarkdown(a.EndsIn))
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, " | "))
		b.WriteByte('\n')
	}

	if len(a.Options) > 0 {
		if a.Kind == domain.KindClosed || a.Kind == domain.KindResolved {
			b.WriteString("Final pool:\n")
		}
		for _, o := range a.Options {
			fmt.Fprintf(&b, "- %s: %s\n", escapeMarkdown(o.Label), FormatPct(o.Pct))
		}
	}

	if a.Kind == domain.KindResolved {
		winner := a.Winner
		if winner == "" {
			winner = "unknown"
		}
		fmt.Fprintf(&b, "Winner: *%s*\n", escapeMarkdown(winner))
	}

	if a.URL != "" {
		fmt.Fprintf(&b, "[Open market](%s)", linkURL(a.URL))
	}
	return title, strings.TrimRight(b.String(), "\n")
}

// FormatPct renders a percentage with at most two decimals, or "n/a".
func FormatPct(p *float64) string {
	if p == nil {
		return "n/a"
	}
	v := math.Round(*p*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

// linkURL makes u safe inside a Markdown inline link, where the target
// ends at the first closing parenthesis.
func linkURL(u string) string {
	return strings.NewReplacer("(", "%28", ")", "%29", " ", "%20").Replace(u)
}

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
