package turn

import "strings"

// bubbleSeparator is the generator's marker for natural pauses; clients
// render each segment as its own chat bubble.
const bubbleSeparator = "|||"

// SplitBubbles splits a reply on the bubble separator, trimming whitespace
// and dropping empty segments. A reply without separators yields one bubble.
func SplitBubbles(text string) []string {
	parts := strings.Split(text, bubbleSeparator)
	bubbles := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bubbles = append(bubbles, part)
	}
	return bubbles
}
