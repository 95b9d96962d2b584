package masking

import (
	"regexp"
	"sort"
	"strings"
)

// cardPattern matches 13 to 19 digits, optionally grouped with spaces or dashes.
var cardPattern = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)

// fallback is the string-level pass used when a payload is not valid JSON.
// It covers quoted-key members, name=value pairs and Luhn-valid card numbers;
// other leak shapes are not detected.
type fallback struct {
	quoted *regexp.Regexp
	pairs  *regexp.Regexp
}

func newFallback(fields map[string]struct{}) *fallback {
	if len(fields) == 0 {
		return &fallback{}
	}

	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, regexp.QuoteMeta(f))
	}
	// longest first so alternation prefers the most specific name
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	alt := strings.Join(names, "|")

	return &fallback{
		quoted: regexp.MustCompile(`(?i)("(?:` + alt + `)"\s*:\s*)("(?:[^"\\]|\\.)*"|[^,}\]\s]+)`),
		pairs:  regexp.MustCompile(`(?i)\b(` + alt + `)(\s*=\s*)[^\s&,;"]+`),
	}
}

// apply is safe on a nil receiver, which only runs the card check.
func (f *fallback) apply(text string) string {
	if f != nil && f.quoted != nil {
		text = f.quoted.ReplaceAllString(text, `${1}"`+Marker+`"`)
	}
	if f != nil && f.pairs != nil {
		text = f.pairs.ReplaceAllString(text, `${1}${2}`+Marker)
	}
	return cardPattern.ReplaceAllStringFunc(text, func(match string) string {
		if luhnValid(match) {
			return Marker
		}
		return match
	})
}

// luhnValid runs the Luhn checksum over the digits of s.
func luhnValid(s string) bool {
	sum := 0
	double := false
	digits := 0
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			continue
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
		digits++
	}
	return digits >= 13 && sum%10 == 0
}
