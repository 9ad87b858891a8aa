package domain

import "time"

// Customer is a contact of the business being segmented. Only EngagementScore
// and Segment are written by segmentation; everything else comes from ingestion.
type Customer struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`

	// Business attributes
	Company       string   `json:"company,omitempty"`
	Industry      string   `json:"industry,omitempty"`
	Country       string   `json:"country,omitempty"`
	Location      string   `json:"location,omitempty"`
	EmployeeCount *int     `json:"employee_count,omitempty"`
	Revenue       *float64 `json:"revenue,omitempty"`

	// Purchase behavior
	TotalPurchases   float64    `json:"total_purchases"`
	PurchaseCount    int        `json:"purchase_count"`
	AvgPurchaseValue float64    `json:"avg_purchase_value"`
	LastPurchaseDate *time.Time `json:"last_purchase_date,omitempty"`

	// Engagement inputs
	EmailOpens    int `json:"email_opens"`
	EmailClicks   int `json:"email_clicks"`
	WebsiteVisits int `json:"website_visits"`

	// Derived
	EngagementScore int                `json:"engagement_score"`
	Segment         *SegmentAssignment `json:"segment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SegmentAssignment is written and cleared as one unit; a customer either has
// all three values or none.
type SegmentAssignment struct {
	SegmentID   int64   `json:"segment_id"`
	SegmentName string  `json:"segment_name"`
	Confidence  float64 `json:"segment_confidence"`
}

// DaysSinceLastPurchase returns whole days elapsed, or false when the customer
// never purchased.
func (c *Customer) DaysSinceLastPurchase(now time.Time) (int, bool) {
	if c.LastPurchaseDate == nil {
		return 0, false
	}
	return DaysBetween(*c.LastPurchaseDate, now), true
}

// DaysBetween returns the number of whole days from then to now, rounded down.
func DaysBetween(then, now time.Time) int {
	d := now.Sub(then)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}
