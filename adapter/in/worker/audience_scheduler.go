package worker

import (
	"context"
	"sync"
	"time"

	"audience_server/core/port/in"

	"github.com/rs/zerolog"
)

// Scheduler periodically rescores every customer and then queues a refresh
// pass, so segment membership follows score drift without manual triggers.
type Scheduler struct {
	customers    in.CustomerService
	segmentation in.SegmentationService
	interval     time.Duration
	initialDelay time.Duration
	log          zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(customers in.CustomerService, segmentation in.SegmentationService, interval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		customers:    customers,
		segmentation: segmentation,
		interval:     interval,
		initialDelay: 30 * time.Second,
		log:          log.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs the schedule until Stop or ctx cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.log.Info().Dur("interval", s.interval).Msg("starting scheduler")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the schedule and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.initialDelay):
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	updated, err := s.customers.CalculateEngagementForAll(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled engagement recalculation failed")
		return
	}

	jobID, err := s.segmentation.EnqueueRefresh(ctx, "scheduler")
	if err != nil {
		s.log.Error().Err(err).Msg("failed to enqueue scheduled refresh")
		return
	}

	s.log.Info().
		Int("customers_rescored", updated).
		Str("job_id", jobID).
		Msg("scheduled rescoring done, refresh queued")
}
