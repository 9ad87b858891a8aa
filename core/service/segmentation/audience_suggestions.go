package segmentation

import (
	"context"
	"strings"
	"time"

	"audience_server/core/domain"
	"audience_server/pkg/apperr"
	"audience_server/pkg/logger"
	"audience_server/pkg/metrics"
)

// AnalyzeForSegmentSuggestions asks the suggestion collaborator for candidate
// segments. Candidates are returned for review only; they take effect only
// when submitted through CreateSegment.
func (s *Service) AnalyzeForSegmentSuggestions(ctx context.Context) (suggestions []*domain.AISegmentSuggestion, err error) {
	if s.deps.Suggester == nil {
		return nil, apperr.AINotConfigured()
	}
	defer metrics.Since(metrics.OpSuggestionAnalyze, time.Now(), &err)

	summary, err := s.populationSummary(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.deps.Suggester.Suggest(ctx, summary, summary.ExistingSegments)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeAIMalformedResponse) ||
			apperr.HasCode(err, apperr.CodeAINotConfigured) ||
			apperr.HasCode(err, apperr.CodeAIUnavailable) {
			return nil, err
		}
		return nil, apperr.AIUnavailable(err)
	}

	suggestions = s.screenSuggestions(ctx, raw, summary.ExistingSegments)
	logger.WithFields(map[string]any{
		"proposed": len(raw),
		"kept":     len(suggestions),
	}).Info("[Suggestions] segment suggestions generated")

	return suggestions, nil
}

// screenSuggestions drops candidates that could never be created and fills
// in a live match count for the rest.
func (s *Service) screenSuggestions(ctx context.Context, raw []*domain.AISegmentSuggestion, existing []string) []*domain.AISegmentSuggestion {
	taken := make(map[string]struct{}, len(existing)+len(raw))
	for _, name := range existing {
		taken[strings.ToLower(name)] = struct{}{}
	}

	now := s.now()
	kept := make([]*domain.AISegmentSuggestion, 0, len(raw))
	for _, sg := range raw {
		if sg == nil {
			continue
		}
		sg.Name = strings.TrimSpace(sg.Name)
		key := strings.ToLower(sg.Name)

		reason := ""
		switch {
		case sg.Name == "":
			reason = "missing name"
		case len(sg.Name) > domain.MaxSegmentNameLength:
			reason = "name too long"
		default:
			if _, dup := taken[key]; dup {
				reason = "duplicate name"
			} else if problems := sg.Criteria.Validate(); len(problems) > 0 {
				reason = strings.Join(problems, "; ")
			}
		}
		if reason != "" {
			logger.WithFields(map[string]any{
				"name":   sg.Name,
				"reason": reason,
			}).Info("[Suggestions] dropped suggestion")
			continue
		}
		taken[key] = struct{}{}

		n, err := s.store.Customers().CountMatching(ctx, BuildPredicate(sg.Criteria, now))
		if err != nil {
			logger.WithError(err).WithField("name", sg.Name).Warn("[Suggestions] failed to count matches")
		}
		sg.MatchingCustomers = n
		kept = append(kept, sg)
	}
	return kept
}

// populationSummary builds the privacy-safe statistics handed to the
// collaborator, served from cache when fresh.
func (s *Service) populationSummary(ctx context.Context) (*domain.PopulationSummary, error) {
	if s.deps.SummaryCache != nil {
		if cached, ok := s.deps.SummaryCache.GetSummary(ctx); ok {
			return cached, nil
		}
	}

	now := s.now()
	customers := s.store.Customers()

	summary, err := customers.PopulationStats(ctx, now)
	if err != nil {
		return nil, storeError("population statistics", err)
	}

	top, err := customers.TopByTotalPurchases(ctx, s.cfg.SummarySampleSize)
	if err != nil {
		return nil, storeError("population sample", err)
	}
	summary.TopCustomers = make([]domain.CustomerSample, 0, len(top))
	for _, c := range top {
		summary.TopCustomers = append(summary.TopCustomers, domain.SampleOf(c, now))
	}

	names, err := s.store.Segments().ListNames(ctx)
	if err != nil {
		return nil, storeError("segment names", err)
	}
	if names == nil {
		names = []string{}
	}
	summary.ExistingSegments = names

	if s.deps.SummaryCache != nil {
		s.deps.SummaryCache.SetSummary(ctx, summary, s.cfg.SummaryCacheTTL)
	}
	return summary, nil
}
