package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sectionedListPage = `<!doctype html>
<html><body>
<section data-section="trending">
  <div class="market-card" data-market-id="T1">
    <a href="/market?id=T1"><h3 class="title">Lakers vs Celtics</h3></a>
    <span class="category">NBA</span>
    <span class="ends-in">Ends in 2h 10m</span>
    <div class="option"><span class="label">Lakers</span><span class="pct">61%</span></div>
    <div class="option"><span class="label">Celtics</span></div>
  </div>
</section>
<section data-section="active">
  <ul>
    <li><a href="/market?id=A1">Will it rain? 40%</a></li>
    <li><a href="/market?id=A2" title="Election winner">link</a></li>
    <li><a href="/market?id=A1">duplicate</a></li>
    <li><a href="/about">About</a></li>
  </ul>
</section>
</body></html>`

const headingListPage = `<html><body>
<h2>Trending now</h2>
<div><a href="/market/H1">Hot one</a></div>
<h2>Active markets</h2>
<div><a href="/market/H2">First</a></div>
<div><a href="/market/H3">Second</a></div>
<h2>Footer</h2>
<div><a href="/market/H9">not a section</a></div>
</body></html>`

func newTestClient(baseURL string) *Client {
	return NewClient(Config{BaseURL: baseURL, ListPath: "/markets", Timeout: 5 * time.Second}, testLogger())
}

func serve(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		body, ok := pages[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body == "500" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchListsDataSections(t *testing.T) {
	srv := serve(t, map[string]string{"/markets": sectionedListPage})
	lists, err := NewListSource(newTestClient(srv.URL)).FetchLists(context.Background())
	if err != nil {
		t.Fatalf("FetchLists: %v", err)
	}

	if len(lists.Trending) != 1 {
		t.Fatalf("trending = %+v", lists.Trending)
	}
	tr := lists.Trending[0]
	if tr.ID != "T1" || tr.Title != "Lakers vs Celtics" || tr.Category != "NBA" || tr.EndsIn != "2h 10m" {
		t.Errorf("trending card = %+v", tr)
	}
	if tr.URL != srv.URL+"/market?id=T1" {
		t.Errorf("url = %q", tr.URL)
	}
	if len(tr.Options) != 2 || tr.Options[0].Label != "Lakers" || *tr.Options[0].Pct != 61 || *tr.Options[1].Pct != 39 {
		t.Errorf("options = %+v", tr.Options)
	}

	if len(lists.Active) != 2 {
		t.Fatalf("active = %+v", lists.Active)
	}
	if lists.Active[0].ID != "A1" || lists.Active[0].Title != "Will it rain?" {
		t.Errorf("active[0] = %+v", lists.Active[0])
	}
	if lists.Active[1].ID != "A2" || lists.Active[1].Title != "Election winner" {
		t.Errorf("active[1] = %+v", lists.Active[1])
	}
}

func TestFetchListsHeadings(t *testing.T) {
	srv := serve(t, map[string]string{"/markets": headingListPage})
	lists, err := NewListSource(newTestClient(srv.URL)).FetchLists(context.Background())
	if err != nil {
		t.Fatalf("FetchLists: %v", err)
	}
	if got := ids(lists.Trending); got != "H1" {
		t.Errorf("trending ids = %s", got)
	}
	if got := ids(lists.Active); got != "H2,H3" {
		t.Errorf("active ids = %s", got)
	}
}

func TestFetchListsNoSectionsIsAllActive(t *testing.T) {
	page := `<html><body><a href="/market?id=Z1">z</a><a href="/market?id=Z2">y</a></body></html>`
	srv := serve(t, map[string]string{"/markets": page})
	lists, err := NewListSource(newTestClient(srv.URL)).FetchLists(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ids(lists.Active) != "Z1,Z2" || len(lists.Trending) != 0 {
		t.Errorf("lists = %+v", lists)
	}
}

func TestFetchListsTransportError(t *testing.T) {
	srv := serve(t, map[string]string{"/markets": "500"})
	if _, err := NewListSource(newTestClient(srv.URL)).FetchLists(context.Background()); err == nil {
		t.Fatal("expected error on 500")
	}
}

func ids(in []domain.Summary) string {
	var out []string
	for _, s := range in {
		out = append(out, s.ID)
	}
	return strings.Join(out, ",")
}

func TestFetchDetail(t *testing.T) {
	tests := []struct {
		name       string
		page       string
		wantStatus domain.MarketStatus
		wantTitle  string
		wantWinner string
		wantOpts   int
	}{
		{
			name: "open with explicit status",
			page: `<html><head><title>ignored</title></head><body>
				<h1>Home vs Away</h1><div data-status="open"></div>
				<div class="option" data-option="Home" data-pct="55"></div>
				<div class="option" data-option="Away" data-pct="45"></div>
				<time datetime="2026-01-02T15:04:05Z">soon</time>
				</body></html>`,
			wantStatus: domain.StatusOpen,
			wantTitle:  "Home vs Away",
			wantOpts:   2,
		},
		{
			name: "closed from badge text",
			page: `<html><body><h1>Match</h1><span class="status">Betting Closed</span>
				<div class="option">Yes 70%</div><div class="option">No 30%</div></body></html>`,
			wantStatus: domain.StatusClosed,
			wantTitle:  "Match",
			wantOpts:   2,
		},
		{
			name: "resolved with winner line",
			page: `<html><body><h1>Derby</h1><p>This market has been resolved.</p>
				<p>Winner: Glasgow Rangers</p></body></html>`,
			wantStatus: domain.StatusResolved,
			wantTitle:  "Derby",
			wantWinner: "Glasgow Rangers",
		},
		{
			name: "resolved with winner attribute",
			page: `<html><head><meta property="og:title" content="OG title"></head><body>
				<div data-status="settled"></div><div data-winner="YES"></div></body></html>`,
			wantStatus: domain.StatusResolved,
			wantTitle:  "OG title",
			wantWinner: "YES",
		},
		{
			name:       "unknown status",
			page:       `<html><body><h1>Mystery</h1></body></html>`,
			wantStatus: domain.StatusUnknown,
			wantTitle:  "Mystery",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, map[string]string{"/market?id=X123": tt.page})
			src := NewSnapshotSource(newTestClient(srv.URL))
			snap, err := src.FetchDetail(context.Background(), srv.URL+"/market?id=X123")
			if err != nil {
				t.Fatalf("FetchDetail: %v", err)
			}
			if snap == nil {
				t.Fatal("nil snapshot")
			}
			if snap.ID != "X123" {
				t.Errorf("id = %q", snap.ID)
			}
			if snap.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", snap.Status, tt.wantStatus)
			}
			if snap.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", snap.Title, tt.wantTitle)
			}
			if snap.Winner != tt.wantWinner {
				t.Errorf("winner = %q, want %q", snap.Winner, tt.wantWinner)
			}
			if len(snap.Options) != tt.wantOpts {
				t.Errorf("options = %+v, want %d", snap.Options, tt.wantOpts)
			}
		})
	}
}

func TestFetchDetailCloseTime(t *testing.T) {
	page := `<html><body><h1>t</h1><div data-status="open" data-close-time="2026-03-01T10:00:00+02:00"></div></body></html>`
	srv := serve(t, map[string]string{"/market/Q7": page})
	snap, err := NewSnapshotSource(newTestClient(srv.URL)).FetchDetail(context.Background(), srv.URL+"/market/Q7")
	if err != nil || snap == nil {
		t.Fatalf("FetchDetail = %v, %v", snap, err)
	}
	want := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	if snap.CloseTime == nil || !snap.CloseTime.Equal(want) {
		t.Errorf("close time = %v, want %v", snap.CloseTime, want)
	}
	if snap.ID != "Q7" {
		t.Errorf("id = %q", snap.ID)
	}
}

func TestFetchDetailNotFoundIsNil(t *testing.T) {
	srv := serve(t, map[string]string{})
	snap, err := NewSnapshotSource(newTestClient(srv.URL)).FetchDetail(context.Background(), srv.URL+"/market?id=gone")
	if err != nil || snap != nil {
		t.Fatalf("FetchDetail = %v, %v; want nil, nil", snap, err)
	}
}

func TestFetchDetailServerErrorIsError(t *testing.T) {
	srv := serve(t, map[string]string{"/market?id=E1": "500"})
	if _, err := NewSnapshotSource(newTestClient(srv.URL)).FetchDetail(context.Background(), srv.URL+"/market?id=E1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFetchRespectsContext(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 0.001}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.fetch(ctx, "http://127.0.0.1:1/"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestStatusFromText(t *testing.T) {
	tests := []struct {
		in   string
		want domain.MarketStatus
	}{
		{"Market RESOLVED", domain.StatusResolved},
		{"Betting closed, awaiting result", domain.StatusClosed},
		{"Place your bet now", domain.StatusOpen},
		{"nothing useful", domain.StatusUnknown},
	}
	for _, tt := range tests {
		if got := statusFromText(tt.in); got != tt.want {
			t.Errorf("statusFromText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParsePct(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"55%", 55, true},
		{"Lakers 61.5 %", 61.5, true},
		{"42", 42, true},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got := parsePct(tt.in)
		if (got != nil) != tt.ok || (got != nil && *got != tt.want) {
			t.Errorf("parsePct(%q) = %v", tt.in, got)
		}
	}
}
