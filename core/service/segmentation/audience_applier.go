package segmentation

import (
	"context"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/out"
	"audience_server/pkg/logger"
	"audience_server/pkg/metrics"
)

// ApplySegment re-evaluates one segment against the current population.
// It holds the shared segmentation lock, so it never interleaves with a
// refresh pass but may run alongside other applies.
func (s *Service) ApplySegment(ctx context.Context, segmentID int64) (result *domain.ApplyResult, err error) {
	defer metrics.Since(metrics.OpSegmentApply, time.Now(), &err)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ApplyTimeout)
	defer cancel()

	var res domain.ApplyResult
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx out.Store) error {
		if err := tx.LockSegmentationShared(ctx); err != nil {
			return err
		}
		segment, err := tx.Segments().GetByID(ctx, segmentID)
		if err != nil {
			return err
		}
		res, err = s.apply(ctx, tx, segment, s.now())
		return err
	})
	if err != nil {
		return nil, storeError("apply segment", err)
	}

	s.afterApply(ctx, res)
	return &res, nil
}

// apply assigns every customer matching the segment and records the count.
// The segment's previous members are released first so that afterwards the
// stored count equals the rows that reference the segment. Customers held by
// other segments are overwritten. Must run inside a transaction.
func (s *Service) apply(ctx context.Context, tx out.Store, segment *domain.Segment, now time.Time) (domain.ApplyResult, error) {
	predicate := buildLogged(segment, now)
	customers := tx.Customers()

	if _, err := customers.ReleaseSegment(ctx, segment.ID); err != nil {
		return domain.ApplyResult{}, err
	}

	matched, err := customers.AssignMatching(ctx, predicate, domain.SegmentAssignment{
		SegmentID:   segment.ID,
		SegmentName: segment.Name,
		Confidence:  domain.RuleBasedConfidence,
	})
	if err != nil {
		return domain.ApplyResult{}, err
	}

	if err := tx.Segments().UpdateCustomerCount(ctx, segment.ID, matched); err != nil {
		return domain.ApplyResult{}, err
	}

	logger.WithFields(map[string]any{
		"segment_id": segment.ID,
		"matched":    matched,
		"conditions": len(predicate.Conditions),
	}).Debug("[Segmentation] segment applied")

	return domain.ApplyResult{
		SegmentID:        segment.ID,
		SegmentName:      segment.Name,
		CustomersMatched: matched,
	}, nil
}

func (s *Service) afterApply(ctx context.Context, result domain.ApplyResult) {
	s.invalidateSummary(ctx)
	s.publish(ctx, &out.SegmentationEvent{
		Type:       out.EventSegmentApplied,
		SegmentID:  result.SegmentID,
		Results:    []domain.ApplyResult{result},
		OccurredAt: s.now(),
	})
}
