// Package worker runs segmentation jobs off the request path.
package worker

import (
	"context"
	"fmt"
	"time"

	"audience_server/adapter/out/messaging"
	"audience_server/core/domain"
	"audience_server/core/port/in"
	"audience_server/core/port/out"
	"audience_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// RefreshProcessor runs one refresh pass per job read from the refresh stream.
// The consumer group hands jobs out one at a time, which makes the worker the
// single writer for queued refreshes.
type RefreshProcessor struct {
	service in.SegmentationService
	log     zerolog.Logger
}

var _ messaging.JobHandler = (*RefreshProcessor)(nil)

func NewRefreshProcessor(service in.SegmentationService, log zerolog.Logger) *RefreshProcessor {
	return &RefreshProcessor{
		service: service,
		log:     log.With().Str("component", "refresh_processor").Logger(),
	}
}

// Handle decodes a refresh job and runs it. A pass already in progress
// satisfies the job, so it is acknowledged rather than retried.
func (p *RefreshProcessor) Handle(ctx context.Context, stream string, data []byte) error {
	var job out.RefreshJob
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("decode refresh job: %w", err)
	}

	log := p.log.With().
		Str("stream", stream).
		Str("job_id", job.JobID).
		Str("requested_by", job.RequestedBy).
		Logger()

	if !job.RequestedAt.IsZero() {
		log.Debug().Dur("queued_for", time.Since(job.RequestedAt)).Msg("refresh job picked up")
	}

	start := time.Now()
	results, err := p.service.RefreshSegmentation(ctx, domain.TriggerWorker)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeRefreshInProgress) {
			log.Info().Msg("refresh already running, job satisfied")
			return nil
		}
		log.Error().Err(err).Msg("refresh job failed")
		return err
	}

	log.Info().
		Int("segments", len(results)).
		Dur("duration", time.Since(start)).
		Msg("refresh job completed")
	return nil
}
