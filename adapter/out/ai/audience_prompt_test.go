package ai

import (
	"strings"
	"testing"

	"audience_server/core/domain"
)

func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantErr   bool
		wantNames []string
	}{
		{
			name: "valid",
			content: `{"suggestions":[
				{"name":"Enterprise","description":"Big buyers","criteria":{"min_employee_count":1000,"industry":["Software"]},"estimated_size_percent":12.5},
				{"name":" Dormant ","criteria":{"days_since_last_purchase":180}}
			]}`,
			wantNames: []string{"Enterprise", "Dormant"},
		},
		{
			name:      "unknown criteria key skips only that suggestion",
			content:   `{"suggestions":[{"name":"Typo","criteria":{"min_purchase":5}},{"name":"All","criteria":{}}]}`,
			wantNames: []string{"All"},
		},
		{
			name:      "missing criteria skips suggestion",
			content:   `{"suggestions":[{"name":"NoCriteria"}]}`,
			wantNames: []string{},
		},
		{name: "empty", content: "  ", wantErr: true},
		{name: "not json", content: "Here are some segments", wantErr: true},
		{name: "no suggestions array", content: `{"segments":[]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSuggestions(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d suggestions", len(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.wantNames) {
				t.Fatalf("got %d suggestions, want %d", len(got), len(tt.wantNames))
			}
			for i, name := range tt.wantNames {
				if got[i].Name != name {
					t.Errorf("suggestion %d name = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}
}

func TestParseSuggestionsCriteria(t *testing.T) {
	got, err := parseSuggestions(`{"suggestions":[{"name":"Enterprise","criteria":{"min_employee_count":1000,"country":["US","DE"]}}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := got[0].Criteria
	if c.MinEmployeeCount == nil || *c.MinEmployeeCount != 1000 {
		t.Errorf("min_employee_count = %v, want 1000", c.MinEmployeeCount)
	}
	if len(c.Countries) != 2 {
		t.Errorf("countries = %v", c.Countries)
	}
}

func TestBuildUserPrompt(t *testing.T) {
	summary := &domain.PopulationSummary{
		TotalCustomers: 42,
		Industries:     []domain.CategoryCount{{Value: "Software", Count: 30}},
	}

	prompt, err := buildUserPrompt(summary, []string{"High Value"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"total_customers": 42`, "Software", "- High Value"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	prompt, _ = buildUserPrompt(summary, nil)
	if !strings.Contains(prompt, "(none)") {
		t.Error("expected (none) marker for no existing segments")
	}
}
