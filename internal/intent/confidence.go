package intent

import (
	"math"
	"strings"

	"github.com/avvvet/rhoai-intent/internal/models"
)

// contextIndicators are weak hints that the utterance carries an argument
// even when no entity name was extracted. They are matched as substrings.
var contextIndicators = []string{"to", "from", "for", "with", "using", "based on"}

// Score computes the additive confidence for a parsed utterance, clamped to
// [0, 1]. usedContext reports whether the primary entity came from history.
func Score(action models.Action, p models.Parameters, query string, usedContext bool) float64 {
	q := strings.ToLower(query)

	if action.IsList() {
		c := 0.7
		if p.Namespace != "" {
			c += 0.1
		}
		return clamp(c)
	}

	c := 0.5
	if p.HasName() {
		c += 0.2
	} else if !containsAny(q, contextIndicators) {
		c = 0.3
	}

	switch action {
	case models.ActionDeployModel:
		if p.Replicas != nil || p.StorageURI != "" {
			c += 0.1
		}
	case models.ActionScaleModel:
		if p.Replicas != nil {
			c += 0.2
		}
	case models.ActionCreatePipeline:
		if strings.Contains(q, "from") || strings.Contains(q, "source") {
			c = math.Max(c, 0.5)
		}
	case models.ActionCreateNotebook:
		if p.Memory != "" || p.CPU != "" || p.Image != "" {
			c += 0.1
		}
	case models.ActionCreateProject:
		if p.MemoryLimit != "" || p.CPULimit != "" {
			c += 0.1
		}
	case models.ActionAddUserToProject:
		if p.Username != "" && p.ProjectName != "" {
			c += 0.2
		}
		if p.Role != "" {
			c += 0.1
		}
	case models.ActionGetProjectResources:
		if p.ProjectName != "" {
			c += 0.1
		}
	}

	if usedContext {
		c += 0.2
	}
	if p.Namespace != "" {
		c += 0.1
	}
	return clamp(c)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// clamp bounds c to [0, 1] and rounds away float noise from the additions.
func clamp(c float64) float64 {
	c = math.Round(c*100) / 100
	return math.Min(1.0, math.Max(0.0, c))
}
