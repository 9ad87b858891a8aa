package out

import (
	"context"
	"time"

	"audience_server/core/domain"
)

// =============================================================================
// SegmentSuggester (LLM)
// =============================================================================

// SegmentSuggester proposes candidate segments from population statistics.
// Returned suggestions are unvalidated.
type SegmentSuggester interface {
	Suggest(ctx context.Context, summary *domain.PopulationSummary, existingNames []string) ([]*domain.AISegmentSuggestion, error)
}

// =============================================================================
// Messaging (Redis Streams)
// =============================================================================

// Event types published on the segmentation events stream.
const (
	EventSegmentApplied        = "segment.applied"
	EventSegmentationRefreshed = "segmentation.refreshed"
)

// SegmentationEvent is published after applies and refresh passes.
type SegmentationEvent struct {
	Type       string               `json:"type"`
	SegmentID  int64                `json:"segment_id,omitempty"`
	RunID      string               `json:"run_id,omitempty"`
	Results    []domain.ApplyResult `json:"results,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// EventPublisher defines the outbound port for segmentation events.
type EventPublisher interface {
	PublishSegmentation(ctx context.Context, event *SegmentationEvent) error
}

// RefreshJob asks a worker to run one refresh pass.
type RefreshJob struct {
	JobID       string    `json:"job_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// RefreshJobQueue defines the outbound port for asynchronous refresh requests.
type RefreshJobQueue interface {
	EnqueueRefresh(ctx context.Context, job *RefreshJob) error
}

// =============================================================================
// Locking
// =============================================================================

// RefreshLock guards refresh passes across processes.
type RefreshLock interface {
	// TryAcquire returns a release func, or ok=false when another holder exists.
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// =============================================================================
// RunReportRepository (MongoDB)
// =============================================================================

// RunReportRepository stores refresh pass reports.
type RunReportRepository interface {
	Save(ctx context.Context, run *domain.RefreshRun) error
	ListRecent(ctx context.Context, limit int) ([]*domain.RefreshRun, error)
}

// =============================================================================
// SummaryCache
// =============================================================================

// SummaryCache caches the population summary between suggestion calls.
type SummaryCache interface {
	GetSummary(ctx context.Context) (*domain.PopulationSummary, bool)
	SetSummary(ctx context.Context, summary *domain.PopulationSummary, ttl time.Duration)
	InvalidateSummary(ctx context.Context)
}
