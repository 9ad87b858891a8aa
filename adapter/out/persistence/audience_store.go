// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"fmt"

	"audience_server/core/port/out"

	"github.com/jmoiron/sqlx"
)

// segmentationLockKey identifies the advisory lock that orders applies
// (shared) against refresh passes (exclusive).
const segmentationLockKey int64 = 0x5E6_0001

// Store implements out.Store on PostgreSQL. A Store bound to a transaction
// routes every repository call through it.
type Store struct {
	db *sqlx.DB
	q  sqlx.ExtContext
	tx *sqlx.Tx
}

var _ out.Store = (*Store)(nil)

// NewStore creates a Store on the given pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Customers() out.CustomerRepository { return &CustomerAdapter{q: s.q} }
func (s *Store) Segments() out.SegmentRepository   { return &SegmentAdapter{q: s.q} }

// RunInTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx out.Store) error) (err error) {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &Store{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) LockSegmentationShared(ctx context.Context) error {
	return s.advisoryLock(ctx, "SELECT pg_advisory_xact_lock_shared($1)")
}

func (s *Store) LockSegmentationExclusive(ctx context.Context) error {
	return s.advisoryLock(ctx, "SELECT pg_advisory_xact_lock($1)")
}

func (s *Store) advisoryLock(ctx context.Context, query string) error {
	if s.tx == nil {
		return fmt.Errorf("%w: advisory lock outside transaction", ErrInvalidInput)
	}
	_, err := s.tx.ExecContext(ctx, query, segmentationLockKey)
	return err
}
