// Package segmentation builds segment predicates, applies segments to the
// customer population and coordinates full refresh passes.
package segmentation

import (
	"time"

	"audience_server/core/domain"
	"audience_server/pkg/logger"
)

// BuildPredicate translates criteria into a conjunctive predicate. Relative
// date bounds are resolved against now, so callers build a fresh predicate on
// every apply. Empty criteria yield the universal predicate.
func BuildPredicate(criteria domain.SegmentCriteria, now time.Time) domain.Predicate {
	var conds []domain.Condition

	addFloat := func(field domain.CustomerField, min, max *float64) {
		if min != nil {
			conds = append(conds, domain.Condition{Field: field, Op: domain.OpGTE, Number: *min})
		}
		if max != nil {
			conds = append(conds, domain.Condition{Field: field, Op: domain.OpLTE, Number: *max})
		}
	}
	addInt := func(field domain.CustomerField, min, max *int) {
		if min != nil {
			conds = append(conds, domain.Condition{Field: field, Op: domain.OpGTE, Number: float64(*min)})
		}
		if max != nil {
			conds = append(conds, domain.Condition{Field: field, Op: domain.OpLTE, Number: float64(*max)})
		}
	}
	addSet := func(field domain.CustomerField, values []string) {
		if len(values) == 0 {
			return
		}
		conds = append(conds, domain.Condition{Field: field, Op: domain.OpIn, Values: dedupe(values)})
	}

	addFloat(domain.FieldTotalPurchases, criteria.MinTotalPurchases, criteria.MaxTotalPurchases)
	addInt(domain.FieldEngagementScore, criteria.MinEngagementScore, criteria.MaxEngagementScore)
	addInt(domain.FieldPurchaseCount, criteria.MinPurchaseCount, criteria.MaxPurchaseCount)
	addInt(domain.FieldEmployeeCount, criteria.MinEmployeeCount, criteria.MaxEmployeeCount)
	addFloat(domain.FieldRevenue, criteria.MinRevenue, criteria.MaxRevenue)
	addSet(domain.FieldIndustry, criteria.Industries)
	addSet(domain.FieldCountry, criteria.Countries)

	// Older than N days: last purchase at or before the cutoff.
	if criteria.DaysSinceLastPurchase != nil {
		conds = append(conds, domain.Condition{
			Field: domain.FieldLastPurchaseDate,
			Op:    domain.OpLTE,
			Time:  now.AddDate(0, 0, -*criteria.DaysSinceLastPurchase),
		})
	}
	// Created within N days: created at or after the cutoff.
	if criteria.DaysSinceCreated != nil {
		conds = append(conds, domain.Condition{
			Field: domain.FieldCreatedAt,
			Op:    domain.OpGTE,
			Time:  now.AddDate(0, 0, -*criteria.DaysSinceCreated),
		})
	}

	return domain.Predicate{Conditions: conds}
}

// buildLogged is BuildPredicate plus a warning when the segment will claim
// the whole population.
func buildLogged(segment *domain.Segment, now time.Time) domain.Predicate {
	p := BuildPredicate(segment.Criteria, now)
	if p.IsUniversal() {
		logger.WithFields(map[string]any{
			"segment_id":   segment.ID,
			"segment_name": segment.Name,
		}).Warn("[Segmentation] segment has empty criteria and matches every customer")
	}
	return p
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
