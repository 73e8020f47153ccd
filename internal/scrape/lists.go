package scrape

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/market"
)

const (
	headingSelector = "h1, h2"
	cardSelector    = "[data-market-id], .market-card, .card, article, li"
)

var (
	trendingWords = []string{"trending", "hot", "popular"}
	activeWords   = []string{"active", "live", "open", "all markets", "markets"}
)

// ListSource reads the active and trending sections of the list page.
type ListSource struct {
	client *Client
}

// NewListSource creates a ListSource over client.
func NewListSource(client *Client) *ListSource {
	return &ListSource{client: client}
}

// FetchLists implements engine.ListSource.
func (l *ListSource) FetchLists(ctx context.Context) (domain.Lists, error) {
	url := market.ResolveURL(l.client.cfg.BaseURL, l.client.cfg.ListPath)
	doc, err := l.client.fetch(ctx, url)
	if err != nil {
		return domain.Lists{}, fmt.Errorf("scrape: list page: %w", err)
	}
	return l.client.parseLists(doc.Selection, url), nil
}

// parseLists finds the two sections by data-section attribute, then by
// heading text. A page with no recognisable sections is read as all
// active.
func (c *Client) parseLists(doc *goquery.Selection, pageURL string) domain.Lists {
	var lists domain.Lists
	found := false

	doc.Find("[data-section]").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(s.AttrOr("data-section", ""))
		switch {
		case containsAny(name, trendingWords):
			lists.Trending = append(lists.Trending, c.collectCards(s, pageURL)...)
			found = true
		case containsAny(name, activeWords):
			lists.Active = append(lists.Active, c.collectCards(s, pageURL)...)
			found = true
		}
	})

	if !found {
		doc.Find(headingSelector).Each(func(_ int, h *goquery.Selection) {
			name := strings.ToLower(cleanText(h.Text()))
			body := h.NextUntil(headingSelector)
			if body.Length() == 0 {
				body = h.Parent()
			}
			switch {
			case containsAny(name, trendingWords):
				lists.Trending = append(lists.Trending, c.collectCards(body, pageURL)...)
				found = true
			case containsAny(name, activeWords):
				lists.Active = append(lists.Active, c.collectCards(body, pageURL)...)
				found = true
			}
		})
	}

	if !found {
		lists.Active = c.collectCards(doc, pageURL)
	}

	lists.Active = dedupSummaries(lists.Active)
	lists.Trending = dedupSummaries(lists.Trending)
	return lists
}

// collectCards turns every market link under sel into a Summary.
func (c *Client) collectCards(sel *goquery.Selection, pageURL string) []domain.Summary {
	var out []domain.Summary
	links := sel.Find("a[href]").AddSelection(sel.Filter("a[href]"))
	links.Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := market.ResolveURL(pageURL, href)
		if !c.isMarketURL(abs) {
			return
		}

		card := a.Closest(cardSelector)
		if card.Length() == 0 {
			card = a
		}

		id := strings.TrimSpace(card.AttrOr("data-market-id", ""))
		if id == "" {
			id = market.ExtractID(abs)
		}
		if id == "" {
			return
		}

		title := firstText(card, titleSelector)
		if title == "" {
			title = cleanText(a.AttrOr("title", ""))
		}
		if title == "" {
			title = cleanText(pctRe.ReplaceAllString(a.Text(), ""))
		}

		out = append(out, domain.Summary{
			ID:       id,
			URL:      abs,
			Title:    title,
			Category: attrOrText(card, categorySelector, "data-category"),
			EndsIn:   extractEndsIn(card),
			Options:  extractOptions(card),
		})
	})
	return out
}

// isMarketURL reports whether u looks like a market detail link.
func (c *Client) isMarketURL(u string) bool {
	if u == "" || strings.HasPrefix(u, "#") || strings.HasPrefix(strings.ToLower(u), "javascript:") {
		return false
	}
	return strings.Contains(strings.ToLower(u), strings.ToLower(c.cfg.MarketPathHint))
}

func dedupSummaries(in []domain.Summary) []domain.Summary {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
