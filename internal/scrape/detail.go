package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/alanyoungcy/marketwatch/internal/domain"
	"github.com/alanyoungcy/marketwatch/internal/market"
)

// SnapshotSource reads one market's detail page.
type SnapshotSource struct {
	client *Client
}

// NewSnapshotSource creates a SnapshotSource over client.
func NewSnapshotSource(client *Client) *SnapshotSource {
	return &SnapshotSource{client: client}
}

// FetchDetail implements engine.SnapshotSource. A missing page or one with
// no recognisable market yields a nil snapshot and no error; only
// transport failures are returned.
func (s *SnapshotSource) FetchDetail(ctx context.Context, url string) (*domain.Snapshot, error) {
	doc, err := s.client.fetch(ctx, url)
	if errors.Is(err, errPageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scrape: detail page: %w", err)
	}
	return parseDetail(doc.Selection, url), nil
}

// parseDetail extracts a snapshot from a detail page. It returns nil when
// no market id can be determined.
func parseDetail(doc *goquery.Selection, pageURL string) *domain.Snapshot {
	id := strings.TrimSpace(doc.Find("[data-market-id]").First().AttrOr("data-market-id", ""))
	if id == "" {
		if canonical, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
			id = market.ExtractID(market.ResolveURL(pageURL, canonical))
		}
	}
	if id == "" {
		id = market.ExtractID(pageURL)
	}
	if id == "" {
		return nil
	}

	snap := &domain.Snapshot{
		ID:       id,
		URL:      pageURL,
		Title:    detailTitle(doc),
		Status:   detailStatus(doc),
		Options:  extractOptions(doc),
		Category: attrOrText(doc, categorySelector, "data-category"),
		EndsIn:   extractEndsIn(doc),
	}
	if snap.Status == domain.StatusResolved {
		snap.Winner = detailWinner(doc)
	}
	if t := detailCloseTime(doc); t != nil {
		snap.CloseTime = t
	}
	return snap
}

func detailTitle(doc *goquery.Selection) string {
	if v := firstText(doc, "[data-title], h1"); v != "" {
		return v
	}
	if v, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
		return cleanText(v)
	}
	return cleanText(doc.Find("title").First().Text())
}

// detailStatus prefers an explicit status attribute, then a status badge,
// then the page text.
func detailStatus(doc *goquery.Selection) domain.MarketStatus {
	if v, ok := doc.Find("[data-status]").First().Attr("data-status"); ok {
		if st := domain.ParseStatus(v); st.Valid() {
			return st
		}
		if st := statusFromText(v); st.Valid() {
			return st
		}
	}
	if badge := firstText(doc, ".status, .market-status, .badge"); badge != "" {
		if st := statusFromText(badge); st.Valid() {
			return st
		}
	}
	return statusFromText(cleanText(doc.Find("body").Text()))
}

func detailWinner(doc *goquery.Selection) string {
	if v := attrOrText(doc, "[data-winner], .winner", "data-winner"); v != "" {
		if m := winnerRe.FindStringSubmatch(v); m != nil {
			return cleanText(m[1])
		}
		return v
	}
	if m := winnerRe.FindStringSubmatch(doc.Find("body").Text()); m != nil {
		return cleanText(m[1])
	}
	return ""
}

func detailCloseTime(doc *goquery.Selection) *time.Time {
	candidates := []string{
		doc.Find("[data-close-time]").First().AttrOr("data-close-time", ""),
		doc.Find("time[datetime]").First().AttrOr("datetime", ""),
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, c); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
