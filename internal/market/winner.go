package market

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alanyoungcy/marketwatch/internal/domain"
)

// ResolveWinner turns a raw extracted winner string into a display label. The
// raw value may be an option label or a generic YES/NO/DRAW/INVALID token from
// a binary-market UI. Resolution order:
//
//  1. an option whose label equals raw (case-insensitive)
//  2. "Invalid" when raw mentions INVALID
//  3. the longest option label contained in raw as a whole word
//  4. a leading YES, NO or DRAW word maps to the first, second and third option
//  5. the trimmed raw string
//
// Steps 3 and 4 match whole words only: "No" does not match "Nominee" and
// "NOT SURE" is not a NO. Letters and digits of any script count as word
// characters.
func ResolveWinner(raw string, opts []domain.Option) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lower := strings.ToLower(raw)

	for _, o := range opts {
		if o.Label != "" && strings.EqualFold(strings.TrimSpace(o.Label), raw) {
			return o.Label
		}
	}

	if strings.Contains(lower, "invalid") {
		return "Invalid"
	}

	byLength := make([]domain.Option, 0, len(opts))
	for _, o := range opts {
		if strings.TrimSpace(o.Label) != "" {
			byLength = append(byLength, o)
		}
	}
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Label) > len(byLength[j].Label)
	})
	for _, o := range byLength {
		if containsWord(lower, strings.ToLower(strings.TrimSpace(o.Label))) {
			return o.Label
		}
	}

	switch leadingToken(raw) {
	case "YES":
		return labelAt(opts, 0, "YES")
	case "NO":
		return labelAt(opts, 1, "NO")
	case "DRAW":
		return labelAt(opts, 2, "DRAW")
	}

	return raw
}

// leadingToken returns the first word of raw, upper-cased and stripped of
// punctuation.
func leadingToken(raw string) string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return !isWordRune(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func labelAt(opts []domain.Option, i int, fallback string) string {
	if i < len(opts) && strings.TrimSpace(opts[i].Label) != "" {
		return opts[i].Label
	}
	return fallback
}

// containsWord reports whether needle occurs in haystack bounded by
// non-alphanumeric characters on both sides.
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	from := 0
	for {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}
		from = start + 1
		if from >= len(haystack) {
			return false
		}
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
