package app

import (
	"strings"

	"ziabot/internal/model"
)

const (
	noHistorySentinel     = "no previous conversation"
	noFileContextSentinel = "no relevant file content"

	titleMaxRunes = 50
)

// fileKeywords is the relevance heuristic: a query is treated as file-related
// when its lowercase form contains any of these.
var fileKeywords = []string{
	"file", "document", "content", "uploaded", "pdf", "txt", "summarize", "describe",
}

func queryMentionsFile(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range fileKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// renderHistory flattens a transcript into "role: content" lines for prompt
// embedding, oldest first.
func renderHistory(messages []model.Message) string {
	if len(messages) == 0 {
		return noHistorySentinel
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// deriveTitle names a new session after the first 50 characters of the query
// that created it.
func deriveTitle(query string) string {
	title := strings.TrimSpace(query)
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes])
	}
	if title == "" {
		title = "New Chat"
	}
	return title
}
