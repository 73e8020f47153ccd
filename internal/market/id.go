package market

import (
	"net/url"
	"strings"
)

// idParams are the query parameters that carry a market id, in priority order.
var idParams = []string{"id", "market", "marketId", "market_id", "m"}

// idSegments are path segments that are followed by the market id.
var idSegments = map[string]bool{
	"market":  true,
	"markets": true,
	"m":       true,
	"event":   true,
	"bet":     true,
}

// ExtractID returns the stable market identifier embedded in a market URL,
// taken from a known query parameter or else from the path. It returns "" when
// nothing usable is present.
func ExtractID(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	q := u.Query()
	for _, p := range idParams {
		if v := strings.TrimSpace(q.Get(p)); v != "" {
			return v
		}
	}

	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	for i := 0; i < len(segs)-1; i++ {
		if idSegments[strings.ToLower(segs[i])] {
			return unescape(segs[i+1])
		}
	}
	if len(segs) > 0 {
		last := segs[len(segs)-1]
		if idSegments[strings.ToLower(last)] {
			return ""
		}
		return unescape(last)
	}
	return ""
}

func unescape(s string) string {
	if v, err := url.PathUnescape(s); err == nil {
		return v
	}
	return s
}

// ResolveURL makes href absolute against base. It returns href unchanged when
// either side cannot be parsed.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() || base == "" {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// DetailURL builds the fallback detail URL for id from a template such as
// "/market?id={id}" resolved against base.
func DetailURL(base, template, id string) string {
	if template == "" {
		template = "/market?id={id}"
	}
	path := strings.ReplaceAll(template, "{id}", url.QueryEscape(id))
	return ResolveURL(base, path)
}
