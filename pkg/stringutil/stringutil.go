// Package stringutil holds small string-formatting helpers shared by the
// CLI's table output, currently just single-line truncation.
package stringutil

import "strings"

// Ellipsis collapses s to a single line (trimmed, newlines replaced with
// spaces, carriage returns removed) and truncates it to maxLength, appending
// "..." when it was cut. Below maxLength 4 there's no room for the
// ellipsis, so the result is a plain truncation.
func Ellipsis(s string, maxLength int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	if maxLength < 0 {
		return ""
	}
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 { // Not enough space for "..."
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
