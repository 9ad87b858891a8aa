package domain

import "time"

// PopulationSummary is an aggregate view of the customer base handed to the
// suggestion model. It never carries names or emails.
type PopulationSummary struct {
	TotalCustomers    int `json:"total_customers"`
	AssignedCustomers int `json:"assigned_customers"`

	TotalPurchases        NumericStats `json:"total_purchases"`
	PurchaseCount         NumericStats `json:"purchase_count"`
	AvgPurchaseValue      NumericStats `json:"avg_purchase_value"`
	EngagementScore       NumericStats `json:"engagement_score"`
	EmployeeCount         NumericStats `json:"employee_count"`
	Revenue               NumericStats `json:"revenue"`
	EmailOpens            NumericStats `json:"email_opens"`
	EmailClicks           NumericStats `json:"email_clicks"`
	WebsiteVisits         NumericStats `json:"website_visits"`
	DaysSinceLastPurchase NumericStats `json:"days_since_last_purchase"`

	Industries []CategoryCount `json:"industries"`
	Countries  []CategoryCount `json:"countries"`

	ExistingSegments []string         `json:"existing_segments"`
	TopCustomers     []CustomerSample `json:"top_customers"`

	GeneratedAt time.Time `json:"generated_at"`
}

// NumericStats summarizes one numeric attribute over the customers that have it.
type NumericStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// CategoryCount is one value of a categorical attribute and how many
// customers carry it.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CustomerSample is the anonymized projection of a high-value customer.
type CustomerSample struct {
	Industry              string   `json:"industry,omitempty"`
	Country               string   `json:"country,omitempty"`
	EmployeeCount         *int     `json:"employee_count,omitempty"`
	Revenue               *float64 `json:"revenue,omitempty"`
	TotalPurchases        float64  `json:"total_purchases"`
	PurchaseCount         int      `json:"purchase_count"`
	EngagementScore       int      `json:"engagement_score"`
	DaysSinceLastPurchase *int     `json:"days_since_last_purchase,omitempty"`
}

// SampleOf projects a customer into a CustomerSample.
func SampleOf(c *Customer, now time.Time) CustomerSample {
	s := CustomerSample{
		Industry:        c.Industry,
		Country:         c.Country,
		EmployeeCount:   c.EmployeeCount,
		Revenue:         c.Revenue,
		TotalPurchases:  c.TotalPurchases,
		PurchaseCount:   c.PurchaseCount,
		EngagementScore: c.EngagementScore,
	}
	if days, ok := c.DaysSinceLastPurchase(now); ok {
		s.DaysSinceLastPurchase = &days
	}
	return s
}

// AISegmentSuggestion is a proposed segment returned by the suggestion model.
// Suggestions are never persisted by the engine.
type AISegmentSuggestion struct {
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	Criteria             SegmentCriteria `json:"criteria"`
	Rationale            string          `json:"rationale,omitempty"`
	EstimatedSizePercent float64         `json:"estimated_size_percent,omitempty"`

	// MatchingCustomers is filled by the engine from a live count.
	MatchingCustomers int `json:"matching_customers"`
}
