package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signflowhq/signflow/internal/adapters/docker"
	"github.com/signflowhq/signflow/internal/adapters/duckdb"
	"github.com/signflowhq/signflow/internal/adapters/enginecmd"
	"github.com/signflowhq/signflow/internal/adapters/procexec"
	appconfig "github.com/signflowhq/signflow/internal/config"
	"github.com/signflowhq/signflow/internal/core/domain"
	"github.com/signflowhq/signflow/internal/core/ports"
	"github.com/signflowhq/signflow/internal/core/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting signflow worker")

	if err := run(logger); err != nil {
		logger.Error("worker startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	configPath := flag.String("config", "signflow.yaml", "path to the configuration file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	secretKey, err := appconfig.NewSecretKey()
	if err != nil {
		return fmt.Errorf("failed to init secret key: %w", err)
	}

	repo, err := duckdb.NewRepository(cfg.Store.Path, secretKey)
	if err != nil {
		return fmt.Errorf("failed to init repository: %w", err)
	}
	defer repo.Close()

	engine, err := enginecmd.New(cfg.Signing.EngineCommand)
	if err != nil {
		return fmt.Errorf("failed to init signing engine: %w", err)
	}

	spawner, err := buildSpawner(cfg.Signing)
	if err != nil {
		return fmt.Errorf("failed to init worker spawner: %w", err)
	}

	// Core services
	notifyBus := services.NewNotifyBus(logger)
	aggregator := services.NewEnvelopeAggregator(logger, repo, notifyBus)
	ledger := services.NewStatusLedger(logger, repo, aggregator)
	orders := services.NewOrderController(logger, repo, notifyBus)
	supervisor := services.NewWorkerPoolSupervisor(logger, cfg.Signing, spawner, repo)

	runner := services.NewJobRunner(logger, repo, repo, repo, engine, ledger, orders, aggregator)
	consumer := services.NewJobConsumer(logger, repo, runner, services.ConsumerConfig{
		MaxConcurrentJobs: int64(cfg.Signing.ParallelWorkers),
	})

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Run(gCtx)
	})

	// Periodic self-check keeps the pool topped up even when no new
	// signing requests arrive to trigger it.
	g.Go(func() error {
		return superviseLoop(gCtx, cfg.Signing, supervisor)
	})

	return g.Wait()
}

func buildSpawner(cfg domain.SigningConfig) (ports.ProcessSpawner, error) {
	switch cfg.WorkerRuntime {
	case domain.WorkerRuntimeContainer:
		return docker.NewSpawner(cfg.WorkerImage, nil)
	default:
		// Re-exec this binary as additional workers.
		return procexec.NewSpawner("", os.Args[1:], nil)
	}
}

// superviseLoop re-checks pool capacity on every throttle window. Each
// worker doing this makes the pool self-healing: when one dies, any
// survivor tops the count back up.
func superviseLoop(ctx context.Context, cfg domain.SigningConfig, supervisor *services.WorkerPoolSupervisor) error {
	if !supervisor.IsAsyncLocalEnabled() {
		return nil
	}

	ticker := time.NewTicker(cfg.ThrottleWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			supervisor.EnsureWorkerRunning(ctx)
		}
	}
}
