package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signflowhq/signflow/internal/core/domain"
)

// Environment overrides, applied on top of the YAML file. The file is
// optional; defaults plus env are enough for a dev setup.
const (
	EnvSigningMode     = "SIGNFLOW_SIGNING_MODE"     // sync | async
	EnvWorkerType      = "SIGNFLOW_WORKER_TYPE"      // local | remote
	EnvWorkerRuntime   = "SIGNFLOW_WORKER_RUNTIME"   // process | container
	EnvParallelWorkers = "SIGNFLOW_PARALLEL_WORKERS" // int
	EnvStorePath       = "SIGNFLOW_STORE_PATH"
)

type fileConfig struct {
	Signing struct {
		Mode            string   `yaml:"mode"`
		WorkerType      string   `yaml:"worker_type"`
		WorkerRuntime   string   `yaml:"worker_runtime"`
		ParallelWorkers int      `yaml:"parallel_workers"`
		ThrottleWindow  string   `yaml:"throttle_window"`
		WorkerImage     string   `yaml:"worker_image"`
		EngineCommand   []string `yaml:"engine_command"`
	} `yaml:"signing"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
}

// Load builds the application config: defaults, then the YAML file at
// path (missing file is fine), then environment overrides.
func Load(path string) (*domain.AppConfig, error) {
	cfg := domain.DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// no config file, defaults apply
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
			applyFile(cfg, fc)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, validate(cfg)
}

func applyFile(cfg *domain.AppConfig, fc fileConfig) {
	if fc.Signing.Mode != "" {
		cfg.Signing.Mode = domain.SigningMode(fc.Signing.Mode)
	}
	if fc.Signing.WorkerType != "" {
		cfg.Signing.WorkerType = domain.WorkerType(fc.Signing.WorkerType)
	}
	if fc.Signing.WorkerRuntime != "" {
		cfg.Signing.WorkerRuntime = domain.WorkerRuntime(fc.Signing.WorkerRuntime)
	}
	if fc.Signing.ParallelWorkers > 0 {
		cfg.Signing.ParallelWorkers = fc.Signing.ParallelWorkers
	}
	if fc.Signing.ThrottleWindow != "" {
		if d, err := time.ParseDuration(fc.Signing.ThrottleWindow); err == nil && d > 0 {
			cfg.Signing.ThrottleWindow = d
		}
	}
	if fc.Signing.WorkerImage != "" {
		cfg.Signing.WorkerImage = fc.Signing.WorkerImage
	}
	if len(fc.Signing.EngineCommand) > 0 {
		cfg.Signing.EngineCommand = fc.Signing.EngineCommand
	}
	if fc.Store.Path != "" {
		cfg.Store.Path = fc.Store.Path
	}
}

func applyEnv(cfg *domain.AppConfig) error {
	if v := os.Getenv(EnvSigningMode); v != "" {
		cfg.Signing.Mode = domain.SigningMode(v)
	}
	if v := os.Getenv(EnvWorkerType); v != "" {
		cfg.Signing.WorkerType = domain.WorkerType(v)
	}
	if v := os.Getenv(EnvWorkerRuntime); v != "" {
		cfg.Signing.WorkerRuntime = domain.WorkerRuntime(v)
	}
	if v := os.Getenv(EnvParallelWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid %s: %q", EnvParallelWorkers, v)
		}
		cfg.Signing.ParallelWorkers = n
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		cfg.Store.Path = v
	}
	return nil
}

func validate(cfg *domain.AppConfig) error {
	switch cfg.Signing.Mode {
	case domain.SigningModeSync, domain.SigningModeAsync:
	default:
		return fmt.Errorf("invalid signing mode: %q", cfg.Signing.Mode)
	}
	switch cfg.Signing.WorkerType {
	case domain.WorkerTypeLocal, domain.WorkerTypeRemote:
	default:
		return fmt.Errorf("invalid worker type: %q", cfg.Signing.WorkerType)
	}
	switch cfg.Signing.WorkerRuntime {
	case domain.WorkerRuntimeProcess, domain.WorkerRuntimeContainer:
	default:
		return fmt.Errorf("invalid worker runtime: %q", cfg.Signing.WorkerRuntime)
	}
	return nil
}
