package intent

import (
	"strings"

	"github.com/avvvet/rhoai-intent/internal/models"
)

var contextModelPatterns = mustAll(
	`([a-z0-9\-]+)\s+model`,
	`model\s+(?:named\s+|called\s+)?([a-z0-9\-]+)`,
	`status\s+of\s+([a-z0-9\-]+)`,
	`the\s+([a-z0-9\-]+)\s+(?:model|is)`,
)

var contextStopwords = words("the", "a", "an", "my", "your")

// pronouns stand in for an entity named in an earlier turn.
var pronouns = words("it", "this", "that")

// ResolveModel searches prior turns, most recent first, for a model name.
// history is chronological. It returns "" when nothing is found.
func ResolveModel(history []models.ConversationMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		content := strings.ToLower(history[i].Content)
		if name := firstCapture(content, contextModelPatterns, contextStopwords.has); name != "" {
			return name
		}
	}
	return ""
}

func needsResolution(name string) bool {
	return name == "" || pronouns.has(name)
}
