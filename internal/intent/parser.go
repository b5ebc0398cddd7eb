// Package intent turns operator utterances into structured intents using a
// fixed, ordered table of regular expressions. It holds no mutable state and
// is safe for concurrent use.
package intent

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/avvvet/rhoai-intent/internal/models"
)

// Replica bounds accepted at parse time. Executors apply a tighter bound.
const (
	MinReplicas = 0
	MaxReplicas = 100
)

// ErrEmptyQuery is returned for empty or whitespace-only utterances.
var ErrEmptyQuery = &models.InputError{Reason: "Query cannot be empty"}

// Parser is the rules-based intent parser.
type Parser struct {
	newID func() string
}

// NewParser creates a parser that stamps intents with random UUIDs.
func NewParser() *Parser {
	return &Parser{newID: uuid.NewString}
}

// ParseIntent classifies query, extracts its parameters, fills a missing or
// pronoun model name from history and scores the result. history is
// chronological, oldest first.
func (p *Parser) ParseIntent(query string, history []models.ConversationMessage) (*models.Intent, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	action, matched := Classify(query)
	params := extractParameters(query, action)

	var ambiguities []string
	if !matched {
		ambiguities = append(ambiguities, fmt.Sprintf("no action pattern matched; defaulted to %s", action))
	}

	usedContext := false
	if needsResolution(params.ModelName) && len(history) > 0 {
		if name := ResolveModel(history); name != "" {
			if params.ModelName != "" {
				ambiguities = append(ambiguities, fmt.Sprintf("resolved %q to model %q from conversation context", params.ModelName, name))
			} else {
				ambiguities = append(ambiguities, fmt.Sprintf("model %q taken from conversation context", name))
			}
			params.ModelName = name
			usedContext = true
		}
	}
	if pronouns.has(params.ModelName) {
		ambiguities = append(ambiguities, fmt.Sprintf("could not resolve %q to a model", params.ModelName))
	}

	if ambiguities == nil {
		ambiguities = []string{}
	}

	return &models.Intent{
		ID:                   p.newID(),
		Action:               action,
		TargetResources:      targetResources(params),
		Parameters:           params,
		Confidence:           Score(action, params, query, usedContext),
		Ambiguities:          ambiguities,
		RequiresConfirmation: action.IsDestructive(),
	}, nil
}

// targetResources returns one reference per extracted entity name, in
// model, pipeline, notebook, project order.
func targetResources(p models.Parameters) []models.ResourceRef {
	refs := []models.ResourceRef{}
	add := func(name string, t models.ResourceType) {
		if name == "" {
			return
		}
		refs = append(refs, models.ResourceRef{
			ResourceID: name,
			Type:       t,
			Name:       name,
			Namespace:  p.Namespace,
			Labels:     map[string]string{},
		})
	}
	add(p.ModelName, models.ResourceInferenceService)
	add(p.PipelineName, models.ResourcePipeline)
	add(p.NotebookName, models.ResourceNotebook)
	add(p.ProjectName, models.ResourceProject)
	return refs
}

// ValidateIntent enforces per-action required fields. A replica count given
// as a word or numeric string is coerced to an integer in place.
func ValidateIntent(in *models.Intent) error {
	p := &in.Parameters

	switch in.Action {
	case models.ActionDeployModel:
		if p.ModelName == "" {
			return models.NewValidationError("model_name", "Model deployment requires a model name")
		}
	case models.ActionScaleModel:
		if p.ModelName == "" {
			return models.NewValidationError("model_name", "Model scaling requires a model name")
		}
		if p.Replicas == nil {
			return models.NewValidationError("replicas", "Model scaling requires replica count")
		}
		n, err := coerceReplicas(p.Replicas)
		if err != nil {
			return err
		}
		if n < MinReplicas || n > MaxReplicas {
			return models.NewValidationError("replicas", "Replica count must be between %d and %d, got: %d", MinReplicas, MaxReplicas, n)
		}
		p.Replicas = models.IntReplicas(n)
	case models.ActionDeleteModel:
		if p.ModelName == "" {
			return models.NewValidationError("model_name", "Model deletion requires a model name")
		}
	case models.ActionGetStatus:
		if p.ModelName == "" {
			return models.NewValidationError("model_name", "Status query requires a model name")
		}
	}
	return nil
}

func coerceReplicas(v *intstr.IntOrString) (int, error) {
	if v.Type == intstr.Int {
		return int(v.IntVal), nil
	}
	s := strings.ToLower(strings.TrimSpace(v.StrVal))
	if n, ok := numberWords[s]; ok {
		return n, nil
	}
	if n, ok := parseReplicas(s); ok {
		return n, nil
	}
	return 0, models.NewValidationError("replicas", "Replica count must be a number, got: %s", v.StrVal)
}
