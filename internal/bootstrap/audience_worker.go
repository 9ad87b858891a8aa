package bootstrap

import (
	"context"
	"errors"
	"sync"

	"audience_server/adapter/in/worker"
	"audience_server/adapter/out/messaging"
	"audience_server/config"
	"audience_server/pkg/logger"

	"github.com/rs/zerolog"
)

const refreshConsumerGroup = "segmentation-workers"

type Worker struct {
	consumer  *messaging.Consumer
	scheduler *worker.Scheduler
	deps      *Dependencies
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	zlog      zerolog.Logger
}

func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	zlog := logger.Default().Zerolog().With().Str("component", "worker").Logger()
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	if deps.Redis != nil {
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:           refreshConsumerGroup,
			Consumer:        cfg.WorkerConsumerName,
			Streams:         []string{messaging.StreamSegmentationRefresh},
			Handler:         worker.NewRefreshProcessor(deps.SegmentationService, zlog),
			Logger:          zlog,
			PendingIdleTime: cfg.RefreshLockTTL,
		})
		logger.Info("Refresh consumer configured (group: %s, consumer: %s)", refreshConsumerGroup, cfg.WorkerConsumerName)

		if cfg.RefreshScheduleInterval > 0 {
			w.scheduler = worker.NewScheduler(deps.EngagementService, deps.SegmentationService, cfg.RefreshScheduleInterval, zlog)
		}
	} else {
		logger.Warn("Redis not available, worker has no refresh queue to consume")
	}

	return w, cleanup, nil
}

// Start runs the consumer and scheduler and blocks until Stop.
func (w *Worker) Start() {
	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("refresh consumer stopped")
			}
		}()
	}

	if w.scheduler != nil {
		w.scheduler.Start(w.ctx)
	}

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
	w.wg.Wait()
}

func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
