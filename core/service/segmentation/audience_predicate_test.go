package segmentation

import (
	"testing"
	"time"

	"audience_server/core/domain"
)

var refNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestBuildPredicate_Empty(t *testing.T) {
	p := BuildPredicate(domain.SegmentCriteria{}, refNow)
	if !p.IsUniversal() {
		t.Fatalf("conditions = %v, want none", p.Conditions)
	}
	if !p.Matches(&domain.Customer{}) {
		t.Error("universal predicate should match a bare customer")
	}

	p = BuildPredicate(domain.SegmentCriteria{Industries: []string{}, Countries: nil}, refNow)
	if !p.IsUniversal() {
		t.Error("empty lists should impose no constraint")
	}
}

func TestBuildPredicate_Matches(t *testing.T) {
	customer := &domain.Customer{
		Industry:         "Retail",
		Country:          "DE",
		EmployeeCount:    ptr(120),
		Revenue:          ptr(2_000_000.0),
		TotalPurchases:   1500,
		PurchaseCount:    12,
		EngagementScore:  64,
		LastPurchaseDate: ptr(refNow.AddDate(0, 0, -45)),
		CreatedAt:        refNow.AddDate(0, 0, -20),
	}

	tests := []struct {
		name     string
		criteria domain.SegmentCriteria
		want     bool
	}{
		{"min total inclusive", domain.SegmentCriteria{MinTotalPurchases: ptr(1500.0)}, true},
		{"min total above", domain.SegmentCriteria{MinTotalPurchases: ptr(1500.01)}, false},
		{"max total inclusive", domain.SegmentCriteria{MaxTotalPurchases: ptr(1500.0)}, true},
		{"score range", domain.SegmentCriteria{MinEngagementScore: ptr(60), MaxEngagementScore: ptr(70)}, true},
		{"score below", domain.SegmentCriteria{MinEngagementScore: ptr(65)}, false},
		{"purchase count max", domain.SegmentCriteria{MaxPurchaseCount: ptr(11)}, false},
		{"employee range", domain.SegmentCriteria{MinEmployeeCount: ptr(100), MaxEmployeeCount: ptr(120)}, true},
		{"revenue min", domain.SegmentCriteria{MinRevenue: ptr(1_000_000.0)}, true},
		{"industry member", domain.SegmentCriteria{Industries: []string{"SaaS", "Retail"}}, true},
		{"industry not member", domain.SegmentCriteria{Industries: []string{"SaaS"}}, false},
		{"industry case sensitive", domain.SegmentCriteria{Industries: []string{"retail"}}, false},
		{"country member", domain.SegmentCriteria{Countries: []string{"DE"}}, true},
		{"older than 30 days", domain.SegmentCriteria{DaysSinceLastPurchase: ptr(30)}, true},
		{"older than 45 days inclusive", domain.SegmentCriteria{DaysSinceLastPurchase: ptr(45)}, true},
		{"older than 60 days", domain.SegmentCriteria{DaysSinceLastPurchase: ptr(60)}, false},
		{"created within 30 days", domain.SegmentCriteria{DaysSinceCreated: ptr(30)}, true},
		{"created within 20 days inclusive", domain.SegmentCriteria{DaysSinceCreated: ptr(20)}, true},
		{"created within 7 days", domain.SegmentCriteria{DaysSinceCreated: ptr(7)}, false},
		{
			name: "all constraints are ANDed",
			criteria: domain.SegmentCriteria{
				MinTotalPurchases: ptr(1000.0),
				Industries:        []string{"Retail"},
				Countries:         []string{"US"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPredicate(tt.criteria, refNow).Matches(customer)
			if got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildPredicate_MissingAttributesNeverMatch(t *testing.T) {
	bare := &domain.Customer{CreatedAt: refNow}

	tests := []struct {
		name     string
		criteria domain.SegmentCriteria
	}{
		{"industry", domain.SegmentCriteria{Industries: []string{""}}},
		{"country", domain.SegmentCriteria{Countries: []string{"US"}}},
		{"employee count", domain.SegmentCriteria{MaxEmployeeCount: ptr(1000)}},
		{"revenue", domain.SegmentCriteria{MaxRevenue: ptr(1e9)}},
		{"last purchase", domain.SegmentCriteria{DaysSinceLastPurchase: ptr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if BuildPredicate(tt.criteria, refNow).Matches(bare) {
				t.Error("absent attribute satisfied a condition")
			}
		})
	}
}

func TestBuildPredicate_ResolvesRelativeDatesAtBuildTime(t *testing.T) {
	criteria := domain.SegmentCriteria{DaysSinceLastPurchase: ptr(30)}
	c := &domain.Customer{LastPurchaseDate: ptr(refNow.AddDate(0, 0, -20))}

	if BuildPredicate(criteria, refNow).Matches(c) {
		t.Fatal("20 days should not satisfy older than 30")
	}
	if !BuildPredicate(criteria, refNow.AddDate(0, 0, 15)).Matches(c) {
		t.Error("a predicate built 15 days later should match")
	}
}

func TestBuildPredicate_DedupesSetValues(t *testing.T) {
	p := BuildPredicate(domain.SegmentCriteria{Countries: []string{"US", "US", "CA"}}, refNow)
	if len(p.Conditions) != 1 || len(p.Conditions[0].Values) != 2 {
		t.Fatalf("conditions = %+v", p.Conditions)
	}
}
