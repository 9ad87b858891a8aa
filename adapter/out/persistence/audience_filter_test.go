package persistence

import (
	"errors"
	"testing"
	"time"

	"audience_server/core/domain"
)

func TestWhereClause(t *testing.T) {
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		pred     domain.Predicate
		first    int
		wantSQL  string
		wantArgs int
	}{
		{
			name:    "universal",
			pred:    domain.Predicate{},
			first:   1,
			wantSQL: "TRUE",
		},
		{
			name: "numeric bounds",
			pred: domain.Predicate{Conditions: []domain.Condition{
				{Field: domain.FieldTotalPurchases, Op: domain.OpGTE, Number: 100},
				{Field: domain.FieldEngagementScore, Op: domain.OpLTE, Number: 80},
			}},
			first:    1,
			wantSQL:  "total_purchases >= $1 AND engagement_score <= $2",
			wantArgs: 2,
		},
		{
			name: "set membership and dates after assignment params",
			pred: domain.Predicate{Conditions: []domain.Condition{
				{Field: domain.FieldIndustry, Op: domain.OpIn, Values: []string{"Retail'; DROP TABLE customers; --"}},
				{Field: domain.FieldLastPurchaseDate, Op: domain.OpLTE, Time: cutoff},
				{Field: domain.FieldCreatedAt, Op: domain.OpGTE, Time: cutoff},
			}},
			first:    4,
			wantSQL:  "industry = ANY($4) AND last_purchase_date <= $5 AND created_at >= $6",
			wantArgs: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := whereClause(tt.pred, tt.first)
			if err != nil {
				t.Fatalf("whereClause() error = %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(args) != tt.wantArgs {
				t.Errorf("args = %d, want %d", len(args), tt.wantArgs)
			}
		})
	}
}

func TestWhereClause_RejectsUnknown(t *testing.T) {
	tests := []struct {
		name string
		cond domain.Condition
	}{
		{"unknown field", domain.Condition{Field: "email; --", Op: domain.OpGTE}},
		{"unknown operator", domain.Condition{Field: domain.FieldRevenue, Op: "<>"}},
		{"IN on numeric", domain.Condition{Field: domain.FieldRevenue, Op: domain.OpIn}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := whereClause(domain.Predicate{Conditions: []domain.Condition{tt.cond}}, 1)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
