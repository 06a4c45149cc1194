// Package utils provides shared utilities for text, math, and logging.
package utils

import "unicode/utf8"

// Ellipsis is appended to truncated snippets.
const Ellipsis = "…"

// Truncate returns s cut to maxLen runes with Ellipsis appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + Ellipsis
}

// MaskSecret hides all but the last four characters of a credential.
func MaskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
