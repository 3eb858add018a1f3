package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signflowhq/signflow/internal/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, domain.SigningModeSync, cfg.Signing.Mode)
	assert.Equal(t, domain.WorkerTypeLocal, cfg.Signing.WorkerType)
	assert.Equal(t, domain.WorkerRuntimeProcess, cfg.Signing.WorkerRuntime)
	assert.Equal(t, 4, cfg.Signing.ParallelWorkers)
	assert.Equal(t, 10*time.Second, cfg.Signing.ThrottleWindow)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
signing:
  mode: async
  worker_runtime: container
  parallel_workers: 8
  throttle_window: 30s
  worker_image: signflow-worker:latest
  engine_command: ["/usr/local/bin/sign-engine", "--stdin"]
store:
  path: /var/lib/signflow/signflow.db
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.SigningModeAsync, cfg.Signing.Mode)
	assert.Equal(t, domain.WorkerTypeLocal, cfg.Signing.WorkerType, "unset fields keep defaults")
	assert.Equal(t, domain.WorkerRuntimeContainer, cfg.Signing.WorkerRuntime)
	assert.Equal(t, 8, cfg.Signing.ParallelWorkers)
	assert.Equal(t, 30*time.Second, cfg.Signing.ThrottleWindow)
	assert.Equal(t, "signflow-worker:latest", cfg.Signing.WorkerImage)
	assert.Equal(t, []string{"/usr/local/bin/sign-engine", "--stdin"}, cfg.Signing.EngineCommand)
	assert.Equal(t, "/var/lib/signflow/signflow.db", cfg.Store.Path)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("signing:\n  mode: sync\n  parallel_workers: 2\n"), 0o600))

	t.Setenv(EnvSigningMode, "async")
	t.Setenv(EnvParallelWorkers, "6")
	t.Setenv(EnvStorePath, "/tmp/override.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, domain.SigningModeAsync, cfg.Signing.Mode)
	assert.Equal(t, 6, cfg.Signing.ParallelWorkers)
	assert.Equal(t, "/tmp/override.db", cfg.Store.Path)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad signing mode", func(t *testing.T) {
		t.Setenv(EnvSigningMode, "sometimes")
		_, err := Load("")
		assert.ErrorContains(t, err, "invalid signing mode")
	})

	t.Run("bad worker runtime", func(t *testing.T) {
		t.Setenv(EnvWorkerRuntime, "vm")
		_, err := Load("")
		assert.ErrorContains(t, err, "invalid worker runtime")
	})

	t.Run("non-numeric parallel workers", func(t *testing.T) {
		t.Setenv(EnvParallelWorkers, "many")
		_, err := Load("")
		assert.ErrorContains(t, err, EnvParallelWorkers)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "signflow.yaml")
		require.NoError(t, os.WriteFile(path, []byte("signing: [oops"), 0o600))
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse config")
	})
}
