package normalize

import (
	"strings"
	"unicode"
)

// Forms carries the three normal forms of a filename used by matching:
// Raw is the extension-stripped (and optionally case-folded) name,
// Normalized additionally drops separator runs, PartialPrefix is the
// leading slice of Normalized used by the partial strategy.
type Forms struct {
	Raw           string
	Normalized    string
	PartialPrefix string
}

// StripExt removes the trailing extension: the last dot and everything
// after it. A name without a dot is returned unchanged.
func StripExt(s string) string {
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[:i]
	}
	return s
}

// Collapse removes every run of '-', '_' and whitespace. Idempotent.
func Collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '-' || r == '_' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Prefix returns the first n runes of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// FormsOf computes the normal forms of a filename or manifest image
// value. Deterministic: equal inputs yield equal forms.
func FormsOf(s string, caseSensitive bool, partialLength int) Forms {
	raw := StripExt(strings.TrimSpace(s))
	if !caseSensitive {
		raw = strings.ToLower(raw)
	}
	norm := Collapse(raw)
	return Forms{
		Raw:           raw,
		Normalized:    norm,
		PartialPrefix: Prefix(norm, partialLength),
	}
}

// Fold lowercases s unless matching is case sensitive.
func Fold(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.ToLower(s)
}
