package segmentation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/in"
	"audience_server/core/port/out"
	"audience_server/core/service/common"
	"audience_server/pkg/apperr"
	"audience_server/pkg/logger"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

var _ in.SegmentationService = (*Service)(nil)

// Config holds the tunables of the segmentation service.
type Config struct {
	ApplyTimeout      time.Duration
	RefreshTimeout    time.Duration
	SummarySampleSize int
	SummaryCacheTTL   time.Duration
}

// Dependencies are the optional collaborators. Any nil field disables the
// feature it backs.
type Dependencies struct {
	Suggester    out.SegmentSuggester
	Events       out.EventPublisher
	Jobs         out.RefreshJobQueue
	RunReports   out.RunReportRepository
	SummaryCache out.SummaryCache
	RefreshLock  out.RefreshLock
}

// Service implements segment management, apply and refresh.
type Service struct {
	store out.Store
	deps  Dependencies
	cfg   Config
	now   func() time.Time

	// refreshMu rejects a second refresh in this process without waiting.
	refreshMu sync.Mutex
}

func NewService(store out.Store, deps Dependencies, cfg Config) *Service {
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 2 * time.Minute
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 10 * time.Minute
	}
	if cfg.SummarySampleSize <= 0 {
		cfg.SummarySampleSize = 5
	}
	if cfg.SummaryCacheTTL <= 0 {
		cfg.SummaryCacheTTL = 5 * time.Minute
	}
	return &Service{
		store: store,
		deps:  deps,
		cfg:   cfg,
		now:   time.Now,
	}
}

// WithClock overrides the clock used for relative date criteria.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// =============================================================================
// Segment operations
// =============================================================================

// CreateSegment validates, persists and immediately applies a new segment.
// Both steps share one transaction, so a failed apply leaves no segment behind.
func (s *Service) CreateSegment(ctx context.Context, req *in.CreateSegmentRequest) (*domain.Segment, error) {
	segment, err := segmentFromRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ApplyTimeout)
	defer cancel()

	var result domain.ApplyResult
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx out.Store) error {
		if err := tx.LockSegmentationShared(ctx); err != nil {
			return err
		}
		if err := tx.Segments().Create(ctx, segment); err != nil {
			return err
		}
		result, err = s.apply(ctx, tx, segment, s.now())
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return nil, apperr.AlreadyExists("segment named " + segment.Name)
		}
		return nil, storeError("create segment", err)
	}

	segment.CustomerCount = result.CustomersMatched
	logger.WithFields(map[string]any{
		"segment_id":   segment.ID,
		"segment_name": segment.Name,
		"ai_generated": segment.AIGenerated,
		"matched":      result.CustomersMatched,
	}).Info("[Segmentation] segment created")

	s.afterApply(ctx, result)
	return segment, nil
}

func (s *Service) ListSegments(ctx context.Context) ([]*domain.Segment, error) {
	segments, err := s.store.Segments().List(ctx)
	if err != nil {
		return nil, storeError("list segments", err)
	}
	if segments == nil {
		segments = []*domain.Segment{}
	}
	return segments, nil
}

func (s *Service) GetSegment(ctx context.Context, segmentID int64, limit, offset int) (*in.SegmentDetail, error) {
	if offset < 0 {
		return nil, apperr.InvalidInput("offset", "must not be negative")
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	segment, err := s.store.Segments().GetByID(ctx, segmentID)
	if err != nil {
		return nil, storeError("get segment", err)
	}
	customers, err := s.store.Customers().ListBySegment(ctx, segmentID, limit, offset)
	if err != nil {
		return nil, storeError("list segment customers", err)
	}
	if customers == nil {
		customers = []*domain.Customer{}
	}

	return &in.SegmentDetail{
		Segment:   segment,
		Customers: customers,
		Limit:     limit,
		Offset:    offset,
	}, nil
}

// PreviewCriteria counts the customers the criteria would match right now
// without writing anything.
func (s *Service) PreviewCriteria(ctx context.Context, criteria domain.SegmentCriteria) (*in.PreviewResult, error) {
	if problems := criteria.Validate(); len(problems) > 0 {
		return nil, validationError(problems)
	}

	predicate := BuildPredicate(criteria, s.now())
	n, err := s.store.Customers().CountMatching(ctx, predicate)
	if err != nil {
		return nil, storeError("preview criteria", err)
	}
	return &in.PreviewResult{MatchingCustomers: n, Universal: predicate.IsUniversal()}, nil
}

// =============================================================================
// Helpers
// =============================================================================

func segmentFromRequest(req *in.CreateSegmentRequest) (*domain.Segment, error) {
	if req == nil {
		return nil, apperr.BadRequest("request body is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.MissingField("name")
	}
	if len(name) > domain.MaxSegmentNameLength {
		return nil, apperr.InvalidInput("name", "must be at most 255 characters")
	}
	if req.Criteria == nil {
		return nil, apperr.MissingField("criteria")
	}
	if problems := req.Criteria.Validate(); len(problems) > 0 {
		return nil, validationError(problems)
	}

	return &domain.Segment{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Criteria:    *req.Criteria,
		AIGenerated: req.AIGenerated,
	}, nil
}

func validationError(problems []string) error {
	return apperr.ValidationFailed("invalid segment criteria").WithDetail("problems", problems)
}

// storeError maps store failures onto the application error taxonomy.
func storeError(op string, err error) error {
	var appErr *apperr.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, common.ErrNotFound):
		return apperr.NotFound("segment")
	case errors.Is(err, common.ErrDuplicate):
		return apperr.Conflict(op + ": duplicate entry")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Timeout(op).WithError(err)
	default:
		return apperr.DatabaseError(op, err)
	}
}

func (s *Service) publish(ctx context.Context, event *out.SegmentationEvent) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.PublishSegmentation(context.WithoutCancel(ctx), event); err != nil {
		logger.WithError(err).WithField("event", event.Type).Warn("[Segmentation] failed to publish event")
	}
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.deps.SummaryCache != nil {
		s.deps.SummaryCache.InvalidateSummary(context.WithoutCancel(ctx))
	}
}
