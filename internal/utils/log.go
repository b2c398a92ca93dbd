package utils

import "strings"

const ellipsis = "..."

// TruncateForLog turns free text such as a bio or a feedback comment into a
// single-line preview of at most limit runes plus an ellipsis when cut.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	preview := strings.Join(strings.Fields(s), " ")
	runes := []rune(preview)
	if len(runes) <= limit {
		return preview
	}
	return strings.TrimRight(string(runes[:limit]), " ") + ellipsis
}
