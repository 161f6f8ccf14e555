package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anuraag-saini/fireqsp-share-sub000/ai"
	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
	"github.com/anuraag-saini/fireqsp-share-sub000/extraction"
)

// extractionTemperature keeps model output near-deterministic.
const extractionTemperature = 0.2

// UnitRunner runs one extraction call: prompt the model with chunk text,
// parse its JSON, and validate the interactions. Malformed model output
// degrades to an empty result; only transport errors propagate.
type UnitRunner struct {
	client ai.Client
	logger *zap.SugaredLogger
}

// NewUnitRunner creates a unit runner backed by the given AI client.
func NewUnitRunner(client ai.Client, logger *zap.SugaredLogger) *UnitRunner {
	return &UnitRunner{client: client, logger: logger}
}

// wire types for the model's JSON response
type wireEntity struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

type wireInteraction struct {
	ID            string     `json:"id"`
	Mechanism     string     `json:"mechanism"`
	Source        wireEntity `json:"source"`
	Target        wireEntity `json:"target"`
	Type          string     `json:"type"`
	Details       string     `json:"details"`
	Confidence    string     `json:"confidence"`
	PageRef       string     `json:"page_ref"`
	ReferenceText string     `json:"reference_text"`
}

type wireResponse struct {
	Interactions []wireInteraction `json:"interactions"`
}

// RunExtraction prompts the model with one unit of text and returns the
// validated interactions. The returned interactions are not yet tagged with
// a source file; the batch extractor owns that.
func (r *UnitRunner) RunExtraction(ctx context.Context, text, pageLabel, domain string) ([]extraction.Interaction, error) {
	variant := PromptForDomain(domain)

	resp, err := r.client.Chat(ctx, ai.ChatRequest{
		SystemPrompt: variant.System,
		UserPrompt:   text,
		Temperature:  ai.Float64(extractionTemperature),
	})
	if err != nil {
		return nil, errors.Wrap(err, "extraction call failed")
	}

	parsed, err := parseInteractions(resp.Content)
	if err != nil {
		// Malformed output from one call is not worth failing the batch.
		r.logger.Warnw("Discarding unparseable extraction response",
			"prompt_variant", variant.Name,
			"page_label", pageLabel,
			"error", err)
		return nil, nil
	}

	return validateInteractions(parsed, pageLabel), nil
}

// parseInteractions decodes the model response, trying a bracket-balancing
// salvage pass when the raw text does not parse. Truncated responses are the
// common failure: the model runs out of tokens mid-array.
func parseInteractions(raw string) ([]wireInteraction, error) {
	cleaned := stripCodeFence(raw)

	var resp wireResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err == nil {
		return resp.Interactions, nil
	}

	salvaged := balanceJSON(cleaned)
	if err := json.Unmarshal([]byte(salvaged), &resp); err != nil {
		return nil, errors.Wrap(err, "response is not valid JSON")
	}
	return resp.Interactions, nil
}

// stripCodeFence removes a surrounding markdown code fence if present and
// trims everything before the first brace.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "{"); idx > 0 {
		s = s[idx:]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// balanceJSON appends the closing brackets and braces a truncated JSON text
// is missing. A dangling partial token before the truncation point still
// fails to parse afterwards; that is fine, salvage is best-effort.
func balanceJSON(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, c)
			}
		case '}':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}

// validateInteractions converts wire interactions to domain records,
// dropping anything without a mechanism, source name, or target name and
// filling defaults for absent fields. Dropped records are not errors; a
// malformed single interaction inside a good batch is not worth surfacing.
func validateInteractions(items []wireInteraction, pageLabel string) []extraction.Interaction {
	var out []extraction.Interaction
	for _, w := range items {
		mechanism := strings.TrimSpace(w.Mechanism)
		sourceName := strings.TrimSpace(w.Source.Name)
		targetName := strings.TrimSpace(w.Target.Name)
		if mechanism == "" || sourceName == "" || targetName == "" {
			continue
		}

		item := extraction.Interaction{
			ID:            w.ID,
			Mechanism:     mechanism,
			Source:        extraction.Entity{Name: sourceName, Level: normalizeLevel(w.Source.Level)},
			Target:        extraction.Entity{Name: targetName, Level: normalizeLevel(w.Target.Level)},
			Type:          normalizeType(w.Type),
			Details:       strings.TrimSpace(w.Details),
			Confidence:    normalizeConfidence(w.Confidence),
			PageRef:       strings.TrimSpace(w.PageRef),
			ReferenceText: strings.TrimSpace(w.ReferenceText),
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if item.PageRef == "" {
			item.PageRef = pageLabel
		}
		out = append(out, item)
	}
	return out
}

func normalizeLevel(level string) extraction.EntityLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "molecular":
		return extraction.LevelMolecular
	case "cellular":
		return extraction.LevelCellular
	case "tissue":
		return extraction.LevelTissue
	case "organ":
		return extraction.LevelOrgan
	default:
		return extraction.LevelMolecular
	}
}

func normalizeType(t string) extraction.InteractionType {
	normalized := extraction.InteractionType(strings.ToLower(strings.TrimSpace(t)))
	if extraction.ValidInteractionType(normalized) {
		return normalized
	}
	return extraction.TypeActivation
}

func normalizeConfidence(c string) extraction.Confidence {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "high":
		return extraction.ConfidenceHigh
	case "low":
		return extraction.ConfidenceLow
	default:
		return extraction.ConfidenceMedium
	}
}
