// Package scrape implements the list and snapshot sources over the market
// site's rendered HTML. Extraction is heuristic: it looks for data
// attributes first, then common class names, then free-text patterns, and
// returns whatever it finds. Callers must treat every field as optional.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 8 << 20

var errPageNotFound = errors.New("scrape: page not found")

// Config configures the site client.
type Config struct {
	BaseURL           string
	ListPath          string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
	// MarketPathHint is a path fragment that marks a link as a market page.
	MarketPathHint string
}

// Client fetches and parses pages from the market site.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Client. A non-positive RequestsPerSecond disables
// rate limiting.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "marketwatch/1.0"
	}
	if cfg.MarketPathHint == "" {
		cfg.MarketPathHint = "market"
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Ceil(cfg.RequestsPerSecond))
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger.With(slog.String("component", "scrape")),
	}
}

// fetch GETs url and parses it as HTML. A 404 yields errPageNotFound.
func (c *Client) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scrape: rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("scrape: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape: get %s: %w", url, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "page fetched",
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, errPageNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scrape: get %s: unexpected status %d: %s", url, resp.StatusCode, string(body))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("scrape: parse %s: %w", url, err)
	}
	return doc, nil
}
