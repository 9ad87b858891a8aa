package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
)

// SegmentAdapter implements out.SegmentRepository using PostgreSQL.
type SegmentAdapter struct {
	q sqlx.ExtContext
}

var _ out.SegmentRepository = (*SegmentAdapter)(nil)

// segmentRow represents the database row for segments.
type segmentRow struct {
	ID            int64          `db:"id"`
	Name          string         `db:"name"`
	Description   sql.NullString `db:"description"`
	Criteria      []byte         `db:"criteria"`
	CustomerCount int            `db:"customer_count"`
	AIGenerated   bool           `db:"ai_generated"`
	CreatedAt     time.Time      `db:"created_at"`
}

// segmentLiveSelect reads segments with customer_count taken from the
// current assignments rather than the cached column.
const segmentLiveSelect = `
	SELECT s.id, s.name, s.description, s.criteria, s.ai_generated, s.created_at,
		COUNT(c.id) AS customer_count
	FROM segments s
	LEFT JOIN customers c ON c.segment_id = s.id
`

func (r *segmentRow) toDomain() (*domain.Segment, error) {
	criteria, err := domain.ParseSegmentCriteria(r.Criteria)
	if err != nil {
		return nil, fmt.Errorf("segment %d: %w", r.ID, err)
	}
	return &domain.Segment{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description.String,
		Criteria:      criteria,
		CustomerCount: r.CustomerCount,
		AIGenerated:   r.AIGenerated,
		CreatedAt:     r.CreatedAt,
	}, nil
}

// Create inserts a segment. A duplicate name returns ErrDuplicate.
func (a *SegmentAdapter) Create(ctx context.Context, s *domain.Segment) error {
	criteria, err := json.Marshal(s.Criteria)
	if err != nil {
		return fmt.Errorf("marshal criteria: %w", err)
	}

	query := `
		INSERT INTO segments (name, description, criteria, ai_generated)
		VALUES ($1, NULLIF($2, ''), $3::jsonb, $4)
		RETURNING id, created_at
	`
	err = a.q.QueryRowxContext(ctx, query, s.Name, s.Description, string(criteria), s.AIGenerated).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID returns one segment with its count taken from the current assignments.
func (a *SegmentAdapter) GetByID(ctx context.Context, id int64) (*domain.Segment, error) {
	query := segmentLiveSelect + `
		WHERE s.id = $1
		GROUP BY s.id
	`
	var row segmentRow
	if err := sqlx.GetContext(ctx, a.q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain()
}

// List returns segments in application order with live counts.
func (a *SegmentAdapter) List(ctx context.Context) ([]*domain.Segment, error) {
	query := segmentLiveSelect + `
		GROUP BY s.id
		ORDER BY s.created_at ASC, s.id ASC
	`
	var rows []segmentRow
	if err := sqlx.SelectContext(ctx, a.q, &rows, query); err != nil {
		return nil, err
	}

	segments := make([]*domain.Segment, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	return segments, nil
}

func (a *SegmentAdapter) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := sqlx.SelectContext(ctx, a.q, &names, `SELECT name FROM segments ORDER BY created_at ASC, id ASC`)
	return names, err
}

func (a *SegmentAdapter) UpdateCustomerCount(ctx context.Context, segmentID int64, count int) error {
	result, err := a.q.ExecContext(ctx, `UPDATE segments SET customer_count = $2 WHERE id = $1`, segmentID, count)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
