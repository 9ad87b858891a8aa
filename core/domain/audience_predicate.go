package domain

import "time"

// EngagementScoreCeiling is the upper bound of Customer.EngagementScore.
const EngagementScoreCeiling = 100

// CustomerField names a filterable customer attribute.
type CustomerField string

const (
	FieldTotalPurchases   CustomerField = "total_purchases"
	FieldEngagementScore  CustomerField = "engagement_score"
	FieldPurchaseCount    CustomerField = "purchase_count"
	FieldEmployeeCount    CustomerField = "employee_count"
	FieldRevenue          CustomerField = "revenue"
	FieldIndustry         CustomerField = "industry"
	FieldCountry          CustomerField = "country"
	FieldLastPurchaseDate CustomerField = "last_purchase_date"
	FieldCreatedAt        CustomerField = "created_at"
)

// Operator is a comparison used by a Condition.
type Operator string

const (
	OpGTE Operator = ">="
	OpLTE Operator = "<="
	OpIn  Operator = "IN"
)

// Condition is a single constraint on one customer field. Exactly one of
// Number, Time or Values is meaningful, depending on the field kind.
type Condition struct {
	Field  CustomerField
	Op     Operator
	Number float64
	Time   time.Time
	Values []string
}

// Predicate is a conjunction of conditions. It has no conditions when it
// matches every customer.
type Predicate struct {
	Conditions []Condition
}

// IsUniversal reports whether the predicate matches every customer.
func (p Predicate) IsUniversal() bool {
	return len(p.Conditions) == 0
}

// Matches evaluates the predicate against a customer. A missing attribute
// never satisfies a condition on it.
func (p Predicate) Matches(c *Customer) bool {
	if c == nil {
		return false
	}
	for _, cond := range p.Conditions {
		if !cond.matches(c) {
			return false
		}
	}
	return true
}

func (cond Condition) matches(c *Customer) bool {
	switch cond.Field {
	case FieldIndustry:
		return cond.Op == OpIn && containsExact(cond.Values, c.Industry)
	case FieldCountry:
		return cond.Op == OpIn && containsExact(cond.Values, c.Country)
	case FieldLastPurchaseDate:
		if c.LastPurchaseDate == nil {
			return false
		}
		return compareTime(*c.LastPurchaseDate, cond.Op, cond.Time)
	case FieldCreatedAt:
		return compareTime(c.CreatedAt, cond.Op, cond.Time)
	}

	v, ok := numericValue(c, cond.Field)
	if !ok {
		return false
	}
	switch cond.Op {
	case OpGTE:
		return v >= cond.Number
	case OpLTE:
		return v <= cond.Number
	}
	return false
}

func numericValue(c *Customer, f CustomerField) (float64, bool) {
	switch f {
	case FieldTotalPurchases:
		return c.TotalPurchases, true
	case FieldEngagementScore:
		return float64(c.EngagementScore), true
	case FieldPurchaseCount:
		return float64(c.PurchaseCount), true
	case FieldEmployeeCount:
		if c.EmployeeCount == nil {
			return 0, false
		}
		return float64(*c.EmployeeCount), true
	case FieldRevenue:
		if c.Revenue == nil {
			return 0, false
		}
		return *c.Revenue, true
	}
	return 0, false
}

func compareTime(v time.Time, op Operator, bound time.Time) bool {
	switch op {
	case OpGTE:
		return !v.Before(bound)
	case OpLTE:
		return !v.After(bound)
	}
	return false
}

func containsExact(values []string, v string) bool {
	if v == "" {
		return false
	}
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
