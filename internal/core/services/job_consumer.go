package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// ConsumerConfig bounds one worker process's appetite.
type ConsumerConfig struct {
	MaxConcurrentJobs int64
	PollInterval      time.Duration
	LeaseDuration     time.Duration
}

// JobConsumer is the worker-side pump: it leases signing jobs from the
// shared queue and hands them to the JobRunner, bounded by a weighted
// semaphore so one process never bites off more than it can chew.
type JobConsumer struct {
	logger *slog.Logger
	queue  ports.JobQueue
	runner *JobRunner
	sem    *semaphore.Weighted
	cfg    ConsumerConfig
}

func NewJobConsumer(logger *slog.Logger, queue ports.JobQueue, runner *JobRunner, cfg ConsumerConfig) *JobConsumer {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = 2 * time.Minute
	}
	return &JobConsumer{
		logger: logger,
		queue:  queue,
		runner: runner,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrentJobs),
		cfg:    cfg,
	}
}

// Run polls the queue until ctx is cancelled. Blocks.
func (c *JobConsumer) Run(ctx context.Context) error {
	c.logger.Info("job consumer started",
		"max_concurrent", c.cfg.MaxConcurrentJobs,
		"poll_interval", c.cfg.PollInterval,
	)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("job consumer stopped")
			return nil
		case <-ticker.C:
			c.drain(ctx)
		}
	}
}

// drain leases jobs until the queue is empty or the semaphore is full.
func (c *JobConsumer) drain(ctx context.Context) {
	for {
		if !c.sem.TryAcquire(1) {
			return // at capacity, next tick will catch up
		}

		job, err := c.queue.Lease(ctx, c.cfg.LeaseDuration)
		if err != nil {
			c.sem.Release(1)
			if !errors.Is(err, domain.ErrJobNotFound) {
				c.logger.Error("job lease failed", "error", err)
			}
			return
		}

		go func(job domain.Job) {
			defer c.sem.Release(1)
			c.execute(ctx, job)
		}(job)
	}
}

func (c *JobConsumer) execute(ctx context.Context, job domain.Job) {
	c.logger.Info("executing signing job", "job_id", job.ID, "type", job.Type)

	var err error
	switch job.Type {
	case domain.JobTypeSignSingleFile:
		err = c.runner.RunSignSingleFile(ctx, job.Args)
	default:
		err = c.runner.RunSignFile(ctx, job.Args)
	}

	// Runner errors are fatal-per-invocation (bad args, missing
	// entities); engine failures were already absorbed inside the runner.
	if err != nil {
		if failErr := c.queue.Fail(context.WithoutCancel(ctx), job.ID, err.Error()); failErr != nil {
			c.logger.Error("failed to record job failure", "job_id", job.ID, "error", failErr)
		}
		return
	}
	if err := c.queue.Complete(context.WithoutCancel(ctx), job.ID); err != nil {
		c.logger.Error("failed to record job completion", "job_id", job.ID, "error", err)
	}
}
