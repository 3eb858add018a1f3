package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
)

// WorkerPoolSupervisor keeps the local worker count near the configured
// desired value. It is a throttled control loop invoked from the request
// path, so it must never propagate an error into its caller: worker
// health never blocks a signing request.
type WorkerPoolSupervisor struct {
	logger  *slog.Logger
	cfg     domain.SigningConfig
	spawner ports.ProcessSpawner
	state   ports.WorkerPoolStateStore
	now     func() time.Time // overridable for tests
}

func NewWorkerPoolSupervisor(
	logger *slog.Logger,
	cfg domain.SigningConfig,
	spawner ports.ProcessSpawner,
	state ports.WorkerPoolStateStore,
) *WorkerPoolSupervisor {
	if cfg.ThrottleWindow <= 0 {
		cfg.ThrottleWindow = 10 * time.Second
	}
	return &WorkerPoolSupervisor{
		logger:  logger,
		cfg:     cfg,
		spawner: spawner,
		state:   state,
		now:     time.Now,
	}
}

// IsAsyncLocalEnabled reports whether this process is responsible for the
// worker pool at all: async signing with local workers. A remote worker
// type means an external autoscaler owns the pool.
func (s *WorkerPoolSupervisor) IsAsyncLocalEnabled() bool {
	return s.cfg.Mode == domain.SigningModeAsync && s.cfg.WorkerType == domain.WorkerTypeLocal
}

// EnsureWorkerRunning tops the pool up to the desired count, spawning at
// most desired-running workers and at most once per throttle window. The
// window stops a burst of concurrent signing requests from each spawning
// a fresh pool. Returns false only when the pool is not this process's
// responsibility or the routine failed; failures are logged and swallowed.
func (s *WorkerPoolSupervisor) EnsureWorkerRunning(ctx context.Context) bool {
	if !s.IsAsyncLocalEnabled() {
		return false
	}

	running, err := s.spawner.Running(ctx)
	if err != nil {
		s.logger.Error("worker pool check failed", "error", err)
		return false
	}

	needed := s.cfg.ParallelWorkers - running
	if needed <= 0 {
		return true
	}

	last, err := s.state.LastSpawnAttempt(ctx)
	if err != nil {
		s.logger.Error("worker pool throttle read failed", "error", err)
		return false
	}
	if s.now().Sub(last) < s.cfg.ThrottleWindow {
		return true // another request spawned recently, let those workers come up
	}

	if err := s.state.RecordSpawnAttempt(ctx, s.now()); err != nil {
		s.logger.Error("worker pool throttle write failed", "error", err)
		return false
	}

	if err := s.spawner.Start(ctx, needed); err != nil {
		s.logger.Error("worker spawn failed", "needed", needed, "error", err)
		return false
	}

	s.logger.Info("workers spawned", "count", needed, "desired", s.cfg.ParallelWorkers, "running", running)
	return true
}
