package domain

import (
	"strings"
	"testing"
)

func TestParseSegmentCriteria(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, c SegmentCriteria)
	}{
		{
			name:  "empty object is universal",
			input: `{}`,
			check: func(t *testing.T, c SegmentCriteria) {
				if !c.IsEmpty() {
					t.Error("expected empty criteria")
				}
			},
		},
		{
			name:  "known keys",
			input: `{"min_total_purchases": 1000, "industry": ["Retail"], "days_since_last_purchase": 90}`,
			check: func(t *testing.T, c SegmentCriteria) {
				if c.MinTotalPurchases == nil || *c.MinTotalPurchases != 1000 {
					t.Errorf("min_total_purchases = %v", c.MinTotalPurchases)
				}
				if len(c.Industries) != 1 || c.DaysSinceLastPurchase == nil || *c.DaysSinceLastPurchase != 90 {
					t.Errorf("criteria = %+v", c)
				}
			},
		},
		{name: "unknown key", input: `{"min_total_purchase": 1000}`, wantErr: true},
		{name: "wrong type", input: `{"industry": "Retail"}`, wantErr: true},
		{name: "null", input: `null`, wantErr: true},
		{name: "blank", input: ` `, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseSegmentCriteria([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}

func TestSegmentCriteria_Validate(t *testing.T) {
	neg := -1
	lo, hi := 10.0, 5.0
	score := 150

	tests := []struct {
		name     string
		criteria SegmentCriteria
		want     string
	}{
		{"valid empty", SegmentCriteria{}, ""},
		{"inverted revenue", SegmentCriteria{MinRevenue: &lo, MaxRevenue: &hi}, "min_revenue is greater than max_revenue"},
		{"negative days", SegmentCriteria{DaysSinceCreated: &neg}, "days_since_created must not be negative"},
		{"negative count", SegmentCriteria{MinPurchaseCount: &neg}, "min_purchase_count must not be negative"},
		{"score above ceiling", SegmentCriteria{MinEngagementScore: &score}, "min_engagement_score must be at most 100"},
		{"blank country", SegmentCriteria{Countries: []string{"US", " "}}, "country values must not be blank"},
		{"empty industry list", SegmentCriteria{Industries: []string{}}, "industry must list at least one value"},
		{"empty country list", SegmentCriteria{Countries: []string{}}, "country must list at least one value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := tt.criteria.Validate()
			if tt.want == "" {
				if len(problems) != 0 {
					t.Errorf("problems = %v, want none", problems)
				}
				return
			}
			if !strings.Contains(strings.Join(problems, "|"), tt.want) {
				t.Errorf("problems = %v, want %q", problems, tt.want)
			}
		})
	}
}
