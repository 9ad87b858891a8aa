package mongodb

import (
	"context"
	"fmt"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Refresh Run Adapter
// =============================================================================

const (
	collectionRefreshRuns = "refresh_runs"
	maxListRuns           = 200
)

// RunReportAdapter implements out.RunReportRepository using MongoDB.
type RunReportAdapter struct {
	collection *mongo.Collection
	retention  time.Duration
}

var _ out.RunReportRepository = (*RunReportAdapter)(nil)

// NewRunReportAdapter creates a run report adapter. Reports expire after
// retention; zero keeps them forever.
func NewRunReportAdapter(db *mongo.Database, retention time.Duration) *RunReportAdapter {
	return &RunReportAdapter{
		collection: db.Collection(collectionRefreshRuns),
		retention:  retention,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *RunReportAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "started_at", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type runDocument struct {
	ID               string           `bson:"id"`
	Trigger          string           `bson:"trigger"`
	Status           string           `bson:"status"`
	ClearedCustomers int              `bson:"cleared_customers"`
	Results          []resultDocument `bson:"results"`
	ErrorMessage     string           `bson:"error_message,omitempty"`
	DurationMs       int64            `bson:"duration_ms"`

	StartedAt  time.Time  `bson:"started_at"`
	FinishedAt time.Time  `bson:"finished_at"`
	ExpiresAt  *time.Time `bson:"expires_at,omitempty"`
}

type resultDocument struct {
	SegmentID        int64  `bson:"segment_id"`
	SegmentName      string `bson:"segment_name"`
	CustomersMatched int    `bson:"customers_matched"`
}

// =============================================================================
// Operations
// =============================================================================

// Save upserts a run report.
func (a *RunReportAdapter) Save(ctx context.Context, run *domain.RefreshRun) error {
	doc := a.toDocument(run)

	opts := options.Replace().SetUpsert(true)
	if _, err := a.collection.ReplaceOne(ctx, bson.M{"id": run.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save refresh run: %w", err)
	}
	return nil
}

// ListRecent returns the newest runs first.
func (a *RunReportAdapter) ListRecent(ctx context.Context, limit int) ([]*domain.RefreshRun, error) {
	if limit <= 0 || limit > maxListRuns {
		limit = maxListRuns
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh runs: %w", err)
	}
	defer cursor.Close(ctx)

	runs := make([]*domain.RefreshRun, 0, limit)
	for cursor.Next(ctx) {
		var doc runDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode refresh run: %w", err)
		}
		runs = append(runs, toRun(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refresh runs: %w", err)
	}

	return runs, nil
}

// =============================================================================
// Conversion Helpers
// =============================================================================

func (a *RunReportAdapter) toDocument(run *domain.RefreshRun) *runDocument {
	doc := &runDocument{
		ID:               run.ID,
		Trigger:          string(run.Trigger),
		Status:           string(run.Status),
		ClearedCustomers: run.ClearedCustomers,
		Results:          make([]resultDocument, 0, len(run.Results)),
		ErrorMessage:     run.Error,
		DurationMs:       run.Duration().Milliseconds(),
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
	}
	for _, r := range run.Results {
		doc.Results = append(doc.Results, resultDocument{
			SegmentID:        r.SegmentID,
			SegmentName:      r.SegmentName,
			CustomersMatched: r.CustomersMatched,
		})
	}
	if a.retention > 0 {
		expires := run.StartedAt.Add(a.retention)
		doc.ExpiresAt = &expires
	}
	return doc
}

func toRun(doc *runDocument) *domain.RefreshRun {
	run := &domain.RefreshRun{
		ID:               doc.ID,
		Trigger:          domain.RefreshTrigger(doc.Trigger),
		Status:           domain.RefreshStatus(doc.Status),
		ClearedCustomers: doc.ClearedCustomers,
		Results:          make([]domain.ApplyResult, 0, len(doc.Results)),
		Error:            doc.ErrorMessage,
		StartedAt:        doc.StartedAt,
		FinishedAt:       doc.FinishedAt,
	}
	for _, r := range doc.Results {
		run.Results = append(run.Results, domain.ApplyResult{
			SegmentID:        r.SegmentID,
			SegmentName:      r.SegmentName,
			CustomersMatched: r.CustomersMatched,
		})
	}
	return run
}
