package grading

import "strings"

// normalize does simple casefolding and trims surrounding whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
