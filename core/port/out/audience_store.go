// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"audience_server/core/domain"
)

// Store is the unit of work over customers and segments.
type Store interface {
	Customers() CustomerRepository
	Segments() SegmentRepository

	// RunInTx runs fn inside one transaction. The Store passed to fn is bound to
	// that transaction; calling RunInTx on it again reuses the transaction.
	// Returning an error rolls everything back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// LockSegmentationShared takes the transaction-scoped shared lock held by
	// single-segment applies. Only valid inside RunInTx.
	LockSegmentationShared(ctx context.Context) error
	// LockSegmentationExclusive takes the transaction-scoped exclusive lock held
	// by a refresh pass. Only valid inside RunInTx.
	LockSegmentationExclusive(ctx context.Context) error
}

// CustomerRepository defines the outbound port for customer persistence.
type CustomerRepository interface {
	// CRUD operations
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id int64) (*domain.Customer, error)

	// Query operations
	ListBySegment(ctx context.Context, segmentID int64, limit, offset int) ([]*domain.Customer, error)
	ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Customer, error)
	CountMatching(ctx context.Context, predicate domain.Predicate) (int, error)

	// Score updates
	UpdateEngagementScores(ctx context.Context, scores []EngagementScoreUpdate) (int, error)

	// Assignment updates. Each writes segment id, name and confidence together.
	AssignMatching(ctx context.Context, predicate domain.Predicate, assignment domain.SegmentAssignment) (int, error)
	ReleaseSegment(ctx context.Context, segmentID int64) (int, error)
	ClearAllAssignments(ctx context.Context) (int, error)

	// Population statistics
	PopulationStats(ctx context.Context, now time.Time) (*domain.PopulationSummary, error)
	TopByTotalPurchases(ctx context.Context, limit int) ([]*domain.Customer, error)
}

// EngagementScoreUpdate is one row of a bulk score update.
type EngagementScoreUpdate struct {
	CustomerID int64
	Score      int
}

// SegmentRepository defines the outbound port for segment persistence.
type SegmentRepository interface {
	Create(ctx context.Context, segment *domain.Segment) error
	GetByID(ctx context.Context, id int64) (*domain.Segment, error)

	// List returns every segment in application order (created_at, id) with
	// CustomerCount computed from current assignments.
	List(ctx context.Context) ([]*domain.Segment, error)
	ListNames(ctx context.Context) ([]string, error)

	UpdateCustomerCount(ctx context.Context, segmentID int64, count int) error
}
