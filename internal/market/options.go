package market

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// MaxOptions is the most outcomes a market can carry.
const MaxOptions = 3

// noiseTokens are boilerplate words the site renders next to option labels.
var noiseTokens = map[string]bool{
	"probability": true,
	"pool":        true,
	"implied":     true,
}

var hundred = decimal.NewFromInt(100)

// CleanLabel strips whitespace noise, a leading "CURRENT" prefix and known
// boilerplate tokens from a scraped option label.
func CleanLabel(label string) string {
	fields := strings.Fields(label)
	if len(fields) > 0 {
		first := strings.TrimRight(strings.ToLower(fields[0]), ":")
		if first == "current" {
			fields = fields[1:]
		}
	}
	kept := fields[:0]
	for _, f := range fields {
		if noiseTokens[strings.ToLower(strings.Trim(f, ":-()"))] {
			continue
		}
		kept = append(kept, f)
	}
	out := strings.Join(kept, " ")
	return strings.TrimFunc(out, func(r rune) bool {
		return unicode.IsSpace(r) || r == ':' || r == '-' || r == '|' || r == '·'
	})
}

// labelKey is the case-insensitive dedup key for a cleaned label.
func labelKey(label string) string {
	return strings.ToLower(label)
}

// NormalizeOptions cleans and deduplicates opts, caps them at MaxOptions,
// clamps percentages to [0,100] and, for exactly two options with one known
// percentage, infers the other as its complement. The first occurrence of a
// label wins; a later non-nil percentage fills an earlier nil one. Unknown
// percentages are never fabricated otherwise.
func NormalizeOptions(opts []domain.Option) []domain.Option {
	if len(opts) == 0 {
		return nil
	}

	out := make([]domain.Option, 0, MaxOptions)
	index := make(map[string]int, MaxOptions)

	for _, o := range opts {
		label := CleanLabel(o.Label)
		if label == "" {
			continue
		}
		pct := clampPct(o.Pct)
		key := labelKey(label)
		if i, ok := index[key]; ok {
			if out[i].Pct == nil && pct != nil {
				out[i].Pct = pct
			}
			continue
		}
		if len(out) >= MaxOptions {
			continue
		}
		index[key] = len(out)
		out = append(out, domain.Option{Label: label, Pct: pct})
	}

	if len(out) == 2 {
		a, b := out[0].Pct, out[1].Pct
		switch {
		case a != nil && b == nil:
			out[1].Pct = complement(*a)
		case a == nil && b != nil:
			out[0].Pct = complement(*b)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// clampPct copies p into [0,100]; NaN and infinities become unknown.
func clampPct(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	v := *p
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return domain.Pct(v)
}

// complement returns 100-p rounded to two decimals and clamped to [0,100].
func complement(p float64) *float64 {
	v := hundred.Sub(decimal.NewFromFloat(p)).Round(2)
	if v.IsNegative() {
		v = decimal.Zero
	}
	if v.GreaterThan(hundred) {
		v = hundred
	}
	return domain.Pct(v.InexactFloat64())
}
