package ai

import (
	"errors"
	"fmt"
	"strings"

	"audience_server/core/domain"
	"audience_server/pkg/logger"

	"github.com/goccy/go-json"
)

const systemPrompt = `You are a B2B marketing analyst. You propose customer segments from aggregate statistics.

Respond with a JSON object of the form:
{"suggestions": [{"name": "...", "description": "...", "rationale": "...", "estimated_size_percent": 0, "criteria": {...}}]}

Allowed criteria keys (all optional, omitted means no constraint):
min_total_purchases, max_total_purchases, min_engagement_score, max_engagement_score,
min_purchase_count, max_purchase_count, min_employee_count, max_employee_count,
min_revenue, max_revenue, industry (list of strings), country (list of strings),
days_since_last_purchase (at least this many days since the last purchase),
days_since_created (created within this many days).

Engagement scores range from 0 to 100. Use only values that appear in the statistics for industry and country.
Propose between 3 and 5 segments. Never reuse an existing segment name.`

// buildUserPrompt renders the summary and the names to avoid.
func buildUserPrompt(summary *domain.PopulationSummary, existingNames []string) (string, error) {
	stats, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal population summary: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Customer population statistics:\n")
	sb.Write(stats)
	sb.WriteString("\n\nExisting segment names:\n")
	if len(existingNames) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, name := range existingNames {
		sb.WriteString("- ")
		sb.WriteString(name)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

type suggestionEnvelope struct {
	Suggestions []rawSuggestion `json:"suggestions"`
}

type rawSuggestion struct {
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	Rationale            string          `json:"rationale"`
	EstimatedSizePercent float64         `json:"estimated_size_percent"`
	Criteria             json.RawMessage `json:"criteria"`
}

// parseSuggestions decodes the model output. A broken envelope is an error;
// a single suggestion with unusable criteria is skipped.
func parseSuggestions(content string) ([]*domain.AISegmentSuggestion, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("empty response")
	}

	var env suggestionEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	if env.Suggestions == nil {
		return nil, errors.New(`response has no "suggestions" array`)
	}

	out := make([]*domain.AISegmentSuggestion, 0, len(env.Suggestions))
	for _, raw := range env.Suggestions {
		criteria, err := domain.ParseSegmentCriteria(raw.Criteria)
		if err != nil {
			logger.WithError(err).WithField("name", raw.Name).Warn("[AI] skipping suggestion with unusable criteria")
			continue
		}
		out = append(out, &domain.AISegmentSuggestion{
			Name:                 strings.TrimSpace(raw.Name),
			Description:          strings.TrimSpace(raw.Description),
			Rationale:            strings.TrimSpace(raw.Rationale),
			EstimatedSizePercent: raw.EstimatedSizePercent,
			Criteria:             criteria,
		})
	}
	return out, nil
}
