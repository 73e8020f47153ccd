package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/market"
)

const (
	optionSelector   = "[data-option], .option, .outcome"
	labelSelector    = "[data-label], .label, .option-label, .name"
	pctSelector      = "[data-pct], .pct, .percent, .probability"
	titleSelector    = "[data-title], .title, .market-title, h3, h4"
	categorySelector = "[data-category], .category, .tag"
	endsInSelector   = "[data-ends-in], .ends-in, .countdown"
)

var (
	pctRe     = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
	endsInRe  = regexp.MustCompile(`(?i)ends\s+in\s*:?\s*([0-9][^\n|•]{0,30})`)
	winnerRe  = regexp.MustCompile(`(?i)(?:winner|winning option|resolved(?:\s+to|\s+as)?|result)\s*[:\-]\s*([^\n|•]{1,80})`)
	spaceRe   = regexp.MustCompile(`\s+`)
	statusMap = []struct {
		status domain.MarketStatus
		words  []string
	}{
		{domain.StatusResolved, []string{"resolved", "settled", "winner:", "final result", "paid out"}},
		{domain.StatusClosed, []string{"betting closed", "market closed", "bets closed", "locked", "awaiting result", "pending resolution", "closed"}},
		{domain.StatusOpen, []string{"place bet", "place your bet", "betting open", "open", "live", "ends in"}},
	}
)

// cleanText collapses whitespace.
func cleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// firstText returns the cleaned text of the first non-empty match of sel
// within s.
func firstText(s *goquery.Selection, sel string) string {
	var out string
	s.Find(sel).EachWithBreak(func(_ int, m *goquery.Selection) bool {
		out = cleanText(m.Text())
		return out == ""
	})
	return out
}

// attrOrText returns attr on the first match of sel when present, else its
// text.
func attrOrText(s *goquery.Selection, sel, attr string) string {
	m := s.Find(sel).First()
	if m.Length() == 0 {
		return ""
	}
	if v, ok := m.Attr(attr); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return cleanText(m.Text())
}

// parsePct extracts a percentage from text like "55%", "55.5 %" or "55".
func parsePct(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if m := pctRe.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return domain.Pct(v)
		}
	}
	if v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err == nil {
		return domain.Pct(v)
	}
	return nil
}

// extractOptions reads option rows under s and normalizes them.
func extractOptions(s *goquery.Selection) []domain.Option {
	var out []domain.Option
	s.Find(optionSelector).Each(func(_ int, o *goquery.Selection) {
		if o.Find(optionSelector).Length() > 0 {
			return
		}
		full := cleanText(o.Text())

		label := strings.TrimSpace(o.AttrOr("data-option", ""))
		if label == "" {
			label = firstText(o, labelSelector)
		}
		if label == "" {
			label = cleanText(pctRe.ReplaceAllString(full, ""))
		}

		pct := parsePct(o.AttrOr("data-pct", ""))
		if pct == nil {
			pct = parsePct(firstText(o, pctSelector))
		}
		if pct == nil {
			pct = parsePct(full)
		}
		out = append(out, domain.Option{Label: label, Pct: pct})
	})
	return market.NormalizeOptions(out)
}

// extractEndsIn reads a countdown element or an "Ends in ..." phrase.
func extractEndsIn(s *goquery.Selection) string {
	if v := attrOrText(s, endsInSelector, "data-ends-in"); v != "" {
		if m := endsInRe.FindStringSubmatch(v); m != nil {
			return cleanText(m[1])
		}
		return v
	}
	if m := endsInRe.FindStringSubmatch(s.Text()); m != nil {
		return cleanText(m[1])
	}
	return ""
}

// statusFromText maps free text to a status, strongest signal first.
func statusFromText(text string) domain.MarketStatus {
	text = strings.ToLower(text)
	for _, entry := range statusMap {
		for _, w := range entry.words {
			if strings.Contains(text, w) {
				return entry.status
			}
		}
	}
	return domain.StatusUnknown
}
