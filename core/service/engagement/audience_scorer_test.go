package engagement

import (
	"math"
	"testing"
	"time"

	"audience_server/core/domain"
)

var refNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := refNow.AddDate(0, 0, -n)
	return &t
}

func TestScorer_ExampleCustomer(t *testing.T) {
	scorer := NewScorerAt(refNow)
	c := &domain.Customer{
		PurchaseCount:    10,
		EmailOpens:       50,
		EmailClicks:      25,
		WebsiteVisits:    20,
		LastPurchaseDate: daysAgo(10),
	}

	b := scorer.Breakdown(c)
	if b.Frequency != 30 || b.Email != 12.5 || b.Web != 20 {
		t.Errorf("components = %+v, want frequency 30, email 12.5, web 20", b)
	}
	if math.Abs(b.Recency-24.315) > 0.001 {
		t.Errorf("recency = %.4f, want about 24.315", b.Recency)
	}
	if b.Total != 87 {
		t.Errorf("score = %d, want 87", b.Total)
	}
}

func TestScorer_ComponentCeilings(t *testing.T) {
	scorer := NewScorerAt(refNow)

	tests := []struct {
		name     string
		customer *domain.Customer
		want     int
	}{
		{
			name:     "all zero",
			customer: &domain.Customer{},
			want:     0,
		},
		{
			name:     "nil customer",
			customer: nil,
			want:     0,
		},
		{
			name:     "frequency capped at 30",
			customer: &domain.Customer{PurchaseCount: 1000},
			want:     30,
		},
		{
			name:     "web capped at 20",
			customer: &domain.Customer{WebsiteVisits: 5000},
			want:     20,
		},
		{
			name:     "more clicks than opens capped at 25",
			customer: &domain.Customer{EmailOpens: 1, EmailClicks: 40},
			want:     25,
		},
		{
			name:     "clicks without opens contribute nothing",
			customer: &domain.Customer{EmailOpens: 0, EmailClicks: 40},
			want:     0,
		},
		{
			name:     "purchase today gives full recency",
			customer: &domain.Customer{LastPurchaseDate: daysAgo(0)},
			want:     25,
		},
		{
			name:     "purchase over a year ago gives no recency",
			customer: &domain.Customer{LastPurchaseDate: daysAgo(800)},
			want:     0,
		},
		{
			name:     "future purchase date capped at 25",
			customer: &domain.Customer{LastPurchaseDate: daysAgo(-30)},
			want:     25,
		},
		{
			name: "everything maxed reaches 100",
			customer: &domain.Customer{
				PurchaseCount:    50,
				EmailOpens:       10,
				EmailClicks:      10,
				WebsiteVisits:    100,
				LastPurchaseDate: daysAgo(0),
			},
			want: 100,
		},
		{
			name:     "negative counters are ignored",
			customer: &domain.Customer{PurchaseCount: -5, WebsiteVisits: -3},
			want:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.customer)
			if got != tt.want {
				t.Errorf("Score() = %d, want %d", got, tt.want)
			}
			if got < 0 || got > domain.EngagementScoreCeiling {
				t.Errorf("Score() = %d out of range", got)
			}
		})
	}
}

func TestScorer_Monotonic(t *testing.T) {
	scorer := NewScorerAt(refNow)
	base := func() *domain.Customer {
		return &domain.Customer{
			PurchaseCount:    3,
			EmailOpens:       20,
			EmailClicks:      4,
			WebsiteVisits:    5,
			LastPurchaseDate: daysAgo(90),
		}
	}

	tests := []struct {
		name string
		vary func(c *domain.Customer, step int)
	}{
		{"purchase count", func(c *domain.Customer, step int) { c.PurchaseCount = step }},
		{"click ratio", func(c *domain.Customer, step int) { c.EmailClicks = step }},
		{"website visits", func(c *domain.Customer, step int) { c.WebsiteVisits = step }},
		{"recency", func(c *domain.Customer, step int) { c.LastPurchaseDate = daysAgo(400 - step*10) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := -1
			for step := 0; step <= 40; step++ {
				c := base()
				tt.vary(c, step)
				got := scorer.Score(c)
				if got < prev {
					t.Fatalf("step %d: score dropped from %d to %d", step, prev, got)
				}
				prev = got
			}
		})
	}
}
