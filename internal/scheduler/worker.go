package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"leadflow_backend/internal/events"
	"leadflow_backend/internal/leads/decay"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// Worker consumes background jobs from the queue.
type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	sweeper *decay.Sweeper
	bus     events.Bus
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper *decay.Sweeper, bus events.Bus, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		sweeper: sweeper,
		bus:     bus,
		log:     log,
	}
	mux.HandleFunc(TaskScoreDecay, w.handleScoreDecay)

	return w, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleScoreDecay(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScoreDecayPayload(task)
	if err != nil {
		return err
	}

	if payload.TenantID != "" {
		tenantID, err := uuid.Parse(payload.TenantID)
		if err != nil {
			return fmt.Errorf("parse tenant id: %w", err)
		}
		res, err := w.sweeper.DegradeInactiveScores(ctx, tenantID)
		if err != nil {
			return err
		}
		w.publishCompleted(ctx, tenantID, res)
		return nil
	}

	res, err := w.sweeper.Run(ctx)
	if err != nil {
		return err
	}
	w.log.Info("score decay sweep completed",
		"processed", res.Processed,
		"degraded", res.Degraded,
		"stage_changes", res.StageChanges,
		"failed", res.Failed)
	return nil
}

func (w *Worker) publishCompleted(ctx context.Context, tenantID uuid.UUID, res decay.Result) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(ctx, events.ScoreDecayCompleted{
		BaseEvent:    events.NewBaseEvent(),
		TenantID:     tenantID,
		Processed:    res.Processed,
		Degraded:     res.Degraded,
		StageChanges: res.StageChanges,
	})
}
