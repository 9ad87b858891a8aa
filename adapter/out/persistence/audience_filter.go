package persistence

import (
	"fmt"
	"strings"

	"audience_server/core/domain"

	"github.com/lib/pq"
)

// customerColumns maps predicate fields onto customer columns. Only these
// identifiers ever reach the SQL text; every value is a bound parameter.
var customerColumns = map[domain.CustomerField]string{
	domain.FieldTotalPurchases:   "total_purchases",
	domain.FieldEngagementScore:  "engagement_score",
	domain.FieldPurchaseCount:    "purchase_count",
	domain.FieldEmployeeCount:    "employee_count",
	domain.FieldRevenue:          "revenue",
	domain.FieldIndustry:         "industry",
	domain.FieldCountry:          "country",
	domain.FieldLastPurchaseDate: "last_purchase_date",
	domain.FieldCreatedAt:        "created_at",
}

// whereClause renders a predicate as a SQL boolean expression whose
// placeholders start at $firstArg. A universal predicate renders as TRUE.
// NULL columns never satisfy a comparison, matching Predicate.Matches.
func whereClause(p domain.Predicate, firstArg int) (string, []any, error) {
	if p.IsUniversal() {
		return "TRUE", nil, nil
	}

	parts := make([]string, 0, len(p.Conditions))
	args := make([]any, 0, len(p.Conditions))
	argIdx := firstArg

	for _, cond := range p.Conditions {
		column, ok := customerColumns[cond.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: unsupported field %q", ErrInvalidInput, cond.Field)
		}

		var value any
		switch cond.Field {
		case domain.FieldIndustry, domain.FieldCountry:
			value = pq.Array(cond.Values)
		case domain.FieldLastPurchaseDate, domain.FieldCreatedAt:
			value = cond.Time
		default:
			value = cond.Number
		}

		switch cond.Op {
		case domain.OpGTE:
			parts = append(parts, fmt.Sprintf("%s >= $%d", column, argIdx))
		case domain.OpLTE:
			parts = append(parts, fmt.Sprintf("%s <= $%d", column, argIdx))
		case domain.OpIn:
			if cond.Field != domain.FieldIndustry && cond.Field != domain.FieldCountry {
				return "", nil, fmt.Errorf("%w: IN on non-categorical field %q", ErrInvalidInput, cond.Field)
			}
			parts = append(parts, fmt.Sprintf("%s = ANY($%d)", column, argIdx))
		default:
			return "", nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidInput, cond.Op)
		}
		args = append(args, value)
		argIdx++
	}

	return strings.Join(parts, " AND "), args, nil
}
