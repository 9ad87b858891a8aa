package segmentation

import (
	"context"
	"net/http"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/out"
	"audience_server/pkg/apperr"
	"audience_server/pkg/logger"
	"audience_server/pkg/metrics"

	"github.com/google/uuid"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// =============================================================================
// Refresh Coordinator
// =============================================================================
//
// A refresh pass runs in one transaction under the exclusive segmentation lock:
//   1. clear every assignment in one statement
//   2. list segments by (created_at, id)
//   3. apply each segment in that order; later segments win overlaps
//   4. reconcile stored counts with the final membership
//
// Readers see either the previous assignment set or the new one. A second
// refresh is rejected while one is running.

// RefreshSegmentation runs one refresh pass and returns the per-segment
// results in application order.
func (s *Service) RefreshSegmentation(ctx context.Context, trigger domain.RefreshTrigger) (results []domain.ApplyResult, err error) {
	if !s.refreshMu.TryLock() {
		return nil, apperr.RefreshInProgress()
	}
	defer s.refreshMu.Unlock()

	if s.deps.RefreshLock != nil {
		release, ok, lockErr := s.deps.RefreshLock.TryAcquire(ctx)
		switch {
		case lockErr != nil:
			// The database lock still serializes passes.
			logger.WithError(lockErr).Warn("[Refresh] distributed lock unavailable, relying on database lock")
		case !ok:
			return nil, apperr.RefreshInProgress()
		default:
			defer release()
		}
	}

	defer metrics.Since(metrics.OpSegmentationRefresh, time.Now(), &err)

	run := &domain.RefreshRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.now(),
	}

	passCtx, cancel := context.WithTimeout(ctx, s.cfg.RefreshTimeout)
	defer cancel()

	err = s.store.RunInTx(passCtx, func(ctx context.Context, tx out.Store) error {
		var passErr error
		run.ClearedCustomers, run.Results, passErr = s.refreshPass(ctx, tx, run.StartedAt)
		return passErr
	})

	run.FinishedAt = s.now()
	if err != nil {
		run.Status = domain.RefreshFailed
		run.Error = err.Error()
		run.Results = nil
	} else {
		run.Status = domain.RefreshSucceeded
	}
	s.recordRun(ctx, run)

	if err != nil {
		return nil, storeError("refresh segmentation", err)
	}

	logger.WithFields(map[string]any{
		"run_id":   run.ID,
		"trigger":  string(trigger),
		"segments": len(run.Results),
		"cleared":  run.ClearedCustomers,
	}).WithDuration(run.Duration()).Info("[Refresh] segmentation refreshed")

	s.invalidateSummary(ctx)
	s.publish(ctx, &out.SegmentationEvent{
		Type:       out.EventSegmentationRefreshed,
		RunID:      run.ID,
		Results:    run.Results,
		OccurredAt: run.FinishedAt,
	})

	if run.Results == nil {
		run.Results = []domain.ApplyResult{}
	}
	return run.Results, nil
}

func (s *Service) refreshPass(ctx context.Context, tx out.Store, now time.Time) (int, []domain.ApplyResult, error) {
	if err := tx.LockSegmentationExclusive(ctx); err != nil {
		return 0, nil, err
	}

	cleared, err := tx.Customers().ClearAllAssignments(ctx)
	if err != nil {
		return 0, nil, err
	}

	segments, err := tx.Segments().List(ctx)
	if err != nil {
		return 0, nil, err
	}

	// Sequential on purpose: overlap resolution depends on application order.
	results := make([]domain.ApplyResult, 0, len(segments))
	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		res, err := s.apply(ctx, tx, segment, now)
		if err != nil {
			return 0, nil, err
		}
		results = append(results, res)
	}

	// Later segments may have taken members from earlier ones.
	final, err := tx.Segments().List(ctx)
	if err != nil {
		return 0, nil, err
	}
	for _, segment := range final {
		if err := tx.Segments().UpdateCustomerCount(ctx, segment.ID, segment.CustomerCount); err != nil {
			return 0, nil, err
		}
	}

	return cleared, results, nil
}

func (s *Service) recordRun(ctx context.Context, run *domain.RefreshRun) {
	if s.deps.RunReports == nil {
		return
	}
	if err := s.deps.RunReports.Save(context.WithoutCancel(ctx), run); err != nil {
		logger.WithError(err).WithField("run_id", run.ID).Warn("[Refresh] failed to save run report")
	}
}

// EnqueueRefresh hands a refresh pass to the worker and returns the job id.
func (s *Service) EnqueueRefresh(ctx context.Context, requestedBy string) (string, error) {
	if s.deps.Jobs == nil {
		return "", apperr.New(apperr.CodeExternalError, "refresh queue is not configured", http.StatusServiceUnavailable)
	}

	job := &out.RefreshJob{
		JobID:       uuid.NewString(),
		RequestedBy: requestedBy,
		RequestedAt: s.now(),
	}
	if err := s.deps.Jobs.EnqueueRefresh(ctx, job); err != nil {
		return "", apperr.ExternalError("refresh queue", err)
	}

	logger.WithField("job_id", job.JobID).Info("[Refresh] refresh job enqueued")
	return job.JobID, nil
}

// ListRefreshRuns returns the most recent refresh reports, newest first.
func (s *Service) ListRefreshRuns(ctx context.Context, limit int) ([]*domain.RefreshRun, error) {
	if s.deps.RunReports == nil {
		return []*domain.RefreshRun{}, nil
	}
	if limit <= 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs, err := s.deps.RunReports.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperr.ExternalError("run reports", err)
	}
	if runs == nil {
		runs = []*domain.RefreshRun{}
	}
	return runs, nil
}
