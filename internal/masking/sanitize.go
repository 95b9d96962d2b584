package masking

import (
	"regexp"
	"strings"
)

// ansiPattern matches CSI sequences, OSC sequences and two-byte escapes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)|\x1b[@-Z\\-_]`)

// SanitizeForLogging removes carriage returns, line feeds and terminal escape
// sequences from s so it cannot forge log lines or drive a terminal. Every
// other character, unicode included, is kept in order.
func SanitizeForLogging(s string) string {
	if s == "" {
		return s
	}
	s = ansiPattern.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\x1b':
			return -1
		}
		return r
	}, s)
}
