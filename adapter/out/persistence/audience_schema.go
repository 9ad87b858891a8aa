package persistence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied idempotently at startup. The CHECK on customers keeps
// the three assignment columns all set or all NULL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS segments (
		id             BIGSERIAL PRIMARY KEY,
		name           TEXT NOT NULL UNIQUE,
		description    TEXT,
		criteria       JSONB NOT NULL DEFAULT '{}'::jsonb,
		customer_count INTEGER NOT NULL DEFAULT 0,
		ai_generated   BOOLEAN NOT NULL DEFAULT FALSE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_order ON segments (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id                 BIGSERIAL PRIMARY KEY,
		email              TEXT NOT NULL UNIQUE,
		name               TEXT NOT NULL,
		company            TEXT,
		industry           TEXT,
		country            TEXT,
		location           TEXT,
		employee_count     INTEGER,
		revenue            DOUBLE PRECISION,
		total_purchases    DOUBLE PRECISION NOT NULL DEFAULT 0,
		purchase_count     INTEGER NOT NULL DEFAULT 0,
		avg_purchase_value DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_purchase_date TIMESTAMPTZ,
		email_opens        INTEGER NOT NULL DEFAULT 0,
		email_clicks       INTEGER NOT NULL DEFAULT 0,
		website_visits     INTEGER NOT NULL DEFAULT 0,
		engagement_score   INTEGER NOT NULL DEFAULT 0 CHECK (engagement_score BETWEEN 0 AND 100),
		segment_id         BIGINT REFERENCES segments (id),
		segment_name       TEXT,
		segment_confidence DOUBLE PRECISION,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT customers_assignment_complete CHECK (
			(segment_id IS NULL AND segment_name IS NULL AND segment_confidence IS NULL) OR
			(segment_id IS NOT NULL AND segment_name IS NOT NULL AND segment_confidence IS NOT NULL)
		)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_segment ON customers (segment_id)`,
	`CREATE INDEX IF NOT EXISTS idx_customers_total_purchases ON customers (total_purchases DESC)`,
}

// EnsureSchema creates the segmentation tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
