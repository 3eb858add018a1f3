package domain

import "time"

// SigningMode decides whether dispatch happens in-request or via the queue.
type SigningMode string

const (
	SigningModeSync  SigningMode = "sync"
	SigningModeAsync SigningMode = "async"
)

// WorkerType decides who is responsible for keeping workers alive.
// "remote" means an external autoscaler owns the pool and the supervisor
// stays hands-off.
type WorkerType string

const (
	WorkerTypeLocal  WorkerType = "local"
	WorkerTypeRemote WorkerType = "remote"
)

// WorkerRuntime selects how local workers are spawned.
type WorkerRuntime string

const (
	WorkerRuntimeProcess   WorkerRuntime = "process"
	WorkerRuntimeContainer WorkerRuntime = "container"
)

// SigningConfig configures dispatch and the worker pool.
type SigningConfig struct {
	Mode            SigningMode   `json:"mode" yaml:"mode"`
	WorkerType      WorkerType    `json:"worker_type" yaml:"worker_type"`
	WorkerRuntime   WorkerRuntime `json:"worker_runtime" yaml:"worker_runtime"`
	ParallelWorkers int           `json:"parallel_workers" yaml:"parallel_workers"`
	ThrottleWindow  time.Duration `json:"throttle_window" yaml:"throttle_window"`
	WorkerImage     string        `json:"worker_image" yaml:"worker_image"` // container runtime only

	// EngineCommand invokes the external signing engine: the command gets
	// the signing task as JSON on stdin and signals success via exit code.
	EngineCommand []string `json:"engine_command" yaml:"engine_command"`
}

// StoreConfig configures the embedded database.
type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

// AppConfig is the main application configuration.
type AppConfig struct {
	Signing SigningConfig `json:"signing" yaml:"signing"`
	Store   StoreConfig   `json:"store" yaml:"store"`
}

// DefaultConfig returns safe defaults: synchronous signing, local process
// workers, a pool of 4 and a 10s spawn throttle.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Signing: SigningConfig{
			Mode:            SigningModeSync,
			WorkerType:      WorkerTypeLocal,
			WorkerRuntime:   WorkerRuntimeProcess,
			ParallelWorkers: 4,
			ThrottleWindow:  10 * time.Second,
			WorkerImage:     "signflow-worker",
		},
		Store: StoreConfig{
			Path: "signflow.db",
		},
	}
}
