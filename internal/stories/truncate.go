package stories

// PreviewLimit is the maximum body length shown in list and search views.
// The detail view always serves the full body.
const PreviewLimit = 200

// Truncate cuts text to limit characters and appends an ellipsis when it is
// longer; shorter text passes through unchanged.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
