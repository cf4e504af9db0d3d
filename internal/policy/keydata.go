package policy

import "strings"

// Keywords that mark a user message as worth flagging for the daily
// summarizer. Matching is deliberately naive; the summarizer re-reads the
// full journal anyway.
var keyMessageKeywords = []string{
	"important",
	"urgent",
	"help",
	"need",
	"problem",
}

// IsKeyMessage reports whether a user message should carry the key_data flag.
func IsKeyMessage(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keyMessageKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
