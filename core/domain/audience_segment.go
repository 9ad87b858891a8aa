package domain

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// RuleBasedConfidence is stored on every assignment made by a segment rule.
// Rule matches are not probabilistic, so the value never varies.
const RuleBasedConfidence = 0.95

// MaxSegmentNameLength bounds Segment.Name.
const MaxSegmentNameLength = 255

// Segment is a named, rule-defined grouping of customers.
type Segment struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Criteria      SegmentCriteria `json:"criteria"`
	CustomerCount int             `json:"customer_count"`
	AIGenerated   bool            `json:"ai_generated"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SegmentCriteria is a conjunction of optional constraints. A nil pointer or
// empty list means the constraint is absent.
type SegmentCriteria struct {
	MinTotalPurchases  *float64 `json:"min_total_purchases,omitempty"`
	MaxTotalPurchases  *float64 `json:"max_total_purchases,omitempty"`
	MinEngagementScore *int     `json:"min_engagement_score,omitempty"`
	MaxEngagementScore *int     `json:"max_engagement_score,omitempty"`
	MinPurchaseCount   *int     `json:"min_purchase_count,omitempty"`
	MaxPurchaseCount   *int     `json:"max_purchase_count,omitempty"`
	MinEmployeeCount   *int     `json:"min_employee_count,omitempty"`
	MaxEmployeeCount   *int     `json:"max_employee_count,omitempty"`
	MinRevenue         *float64 `json:"min_revenue,omitempty"`
	MaxRevenue         *float64 `json:"max_revenue,omitempty"`

	Industries []string `json:"industry,omitempty"`
	Countries  []string `json:"country,omitempty"`

	// DaysSinceLastPurchase keeps customers whose last purchase is at least
	// this many days old.
	DaysSinceLastPurchase *int `json:"days_since_last_purchase,omitempty"`
	// DaysSinceCreated keeps customers created within this many days.
	DaysSinceCreated *int `json:"days_since_created,omitempty"`
}

// IsEmpty reports whether no constraint is present. An empty criteria set
// matches every customer.
func (c SegmentCriteria) IsEmpty() bool {
	return c.MinTotalPurchases == nil && c.MaxTotalPurchases == nil &&
		c.MinEngagementScore == nil && c.MaxEngagementScore == nil &&
		c.MinPurchaseCount == nil && c.MaxPurchaseCount == nil &&
		c.MinEmployeeCount == nil && c.MaxEmployeeCount == nil &&
		c.MinRevenue == nil && c.MaxRevenue == nil &&
		len(c.Industries) == 0 && len(c.Countries) == 0 &&
		c.DaysSinceLastPurchase == nil && c.DaysSinceCreated == nil
}

// Validate returns the list of problems with the criteria, or nil.
func (c SegmentCriteria) Validate() []string {
	var problems []string

	checkFloat := func(name string, min, max *float64) {
		if min != nil && *min < 0 {
			problems = append(problems, fmt.Sprintf("min_%s must not be negative", name))
		}
		if max != nil && *max < 0 {
			problems = append(problems, fmt.Sprintf("max_%s must not be negative", name))
		}
		if min != nil && max != nil && *min > *max {
			problems = append(problems, fmt.Sprintf("min_%s is greater than max_%s", name, name))
		}
	}
	checkInt := func(name string, min, max *int) {
		var fmin, fmax *float64
		if min != nil {
			v := float64(*min)
			fmin = &v
		}
		if max != nil {
			v := float64(*max)
			fmax = &v
		}
		checkFloat(name, fmin, fmax)
	}

	checkFloat("total_purchases", c.MinTotalPurchases, c.MaxTotalPurchases)
	checkInt("engagement_score", c.MinEngagementScore, c.MaxEngagementScore)
	checkInt("purchase_count", c.MinPurchaseCount, c.MaxPurchaseCount)
	checkInt("employee_count", c.MinEmployeeCount, c.MaxEmployeeCount)
	checkFloat("revenue", c.MinRevenue, c.MaxRevenue)

	if c.MinEngagementScore != nil && *c.MinEngagementScore > EngagementScoreCeiling {
		problems = append(problems, "min_engagement_score must be at most 100")
	}
	if c.DaysSinceLastPurchase != nil && *c.DaysSinceLastPurchase < 0 {
		problems = append(problems, "days_since_last_purchase must not be negative")
	}
	if c.DaysSinceCreated != nil && *c.DaysSinceCreated < 0 {
		problems = append(problems, "days_since_created must not be negative")
	}
	if c.Industries != nil && len(c.Industries) == 0 {
		problems = append(problems, "industry must list at least one value")
	}
	if c.Countries != nil && len(c.Countries) == 0 {
		problems = append(problems, "country must list at least one value")
	}
	for _, v := range c.Industries {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, "industry values must not be blank")
			break
		}
	}
	for _, v := range c.Countries {
		if strings.TrimSpace(v) == "" {
			problems = append(problems, "country values must not be blank")
			break
		}
	}

	return problems
}

// ParseSegmentCriteria decodes criteria JSON, rejecting unknown keys so a
// misspelled constraint cannot silently widen a segment.
func ParseSegmentCriteria(data []byte) (SegmentCriteria, error) {
	var c SegmentCriteria
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return c, fmt.Errorf("criteria is required")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("invalid criteria: %w", err)
	}
	return c, nil
}

// ApplyResult reports the outcome of applying one segment.
type ApplyResult struct {
	SegmentID        int64  `json:"segment_id"`
	SegmentName      string `json:"segment_name"`
	CustomersMatched int    `json:"customers_matched"`
}

// RefreshStatus is the terminal state of a refresh pass.
type RefreshStatus string

const (
	RefreshSucceeded RefreshStatus = "succeeded"
	RefreshFailed    RefreshStatus = "failed"
)

// RefreshTrigger records who started a refresh pass.
type RefreshTrigger string

const (
	TriggerAPI    RefreshTrigger = "api"
	TriggerWorker RefreshTrigger = "worker"
)

// RefreshRun is the report of one refresh pass.
type RefreshRun struct {
	ID               string         `json:"id"`
	Trigger          RefreshTrigger `json:"trigger"`
	Status           RefreshStatus  `json:"status"`
	ClearedCustomers int            `json:"cleared_customers"`
	Results          []ApplyResult  `json:"results"`
	Error            string         `json:"error,omitempty"`
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
}

// Duration of the pass.
func (r *RefreshRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
