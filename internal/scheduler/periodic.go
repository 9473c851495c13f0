package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

// Periodic registers the recurring decay sweep on the asynq scheduler. The
// cron spec comes from configuration ("@every 24h" by default).
type Periodic struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodic(cfg config.SchedulerConfig, log *logger.Logger) (*Periodic, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{})

	task, err := NewScoreDecayTask(ScoreDecayPayload{})
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	if _, err := scheduler.Register(cfg.GetDecaySweepSpec(), task, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register decay sweep: %w", err)
	}

	return &Periodic{scheduler: scheduler, log: log}, nil
}

// Run drives the scheduler until the context is cancelled.
func (p *Periodic) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	go func() {
		<-ctx.Done()
		p.scheduler.Shutdown()
	}()

	if err := p.scheduler.Run(); err != nil {
		p.log.Error("periodic scheduler stopped", "error", err)
	}
}
