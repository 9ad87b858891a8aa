package mongodb

import (
	"testing"
	"time"

	"audience_server/core/domain"
)

func TestRunDocumentRoundTrip(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	run := &domain.RefreshRun{
		ID:               "run-1",
		Trigger:          domain.TriggerWorker,
		Status:           domain.RefreshSucceeded,
		ClearedCustomers: 4,
		Results: []domain.ApplyResult{
			{SegmentID: 1, SegmentName: "Enterprise", CustomersMatched: 3},
		},
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	}

	a := &RunReportAdapter{retention: 24 * time.Hour}
	doc := a.toDocument(run)

	if doc.DurationMs != 1500 {
		t.Errorf("duration_ms = %d, want 1500", doc.DurationMs)
	}
	if doc.ExpiresAt == nil || !doc.ExpiresAt.Equal(start.Add(24*time.Hour)) {
		t.Errorf("expires_at = %v, want start+24h", doc.ExpiresAt)
	}

	back := toRun(doc)
	if back.ID != run.ID || back.Trigger != run.Trigger || back.Status != run.Status {
		t.Errorf("identity fields changed: %+v", back)
	}
	if len(back.Results) != 1 || back.Results[0] != run.Results[0] {
		t.Errorf("results = %+v", back.Results)
	}
}

func TestRunDocumentWithoutRetention(t *testing.T) {
	a := &RunReportAdapter{}
	doc := a.toDocument(&domain.RefreshRun{ID: "run-2", StartedAt: time.Now()})
	if doc.ExpiresAt != nil {
		t.Errorf("expected no expiry, got %v", doc.ExpiresAt)
	}
	if doc.Results == nil {
		t.Error("results should be an empty slice, not nil")
	}
}
