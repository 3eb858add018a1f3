package procexec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/signflowhq/signflow/internal/core/ports"
)

// Spawner starts signing workers as detached OS processes of the worker
// binary. It tracks the PIDs it spawned and probes their liveness when
// asked how many are running; workers it did not spawn (a previous
// incarnation's pool) are invisible to it, which errs on the side of
// spawning and lets the throttle window absorb the excess.
type Spawner struct {
	binary string
	args   []string
	env    []string

	mu   sync.Mutex
	pids []int
}

var _ ports.ProcessSpawner = (*Spawner)(nil)

// NewSpawner creates a process spawner for the given worker binary. An
// empty binary path re-execs the current executable.
func NewSpawner(binary string, args []string, env []string) (*Spawner, error) {
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve worker binary: %w", err)
		}
		binary = self
	}
	return &Spawner{binary: binary, args: args, env: env}, nil
}

// Start launches count worker processes and returns as soon as the spawn
// calls return, without waiting for readiness.
func (s *Spawner) Start(_ context.Context, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < count; i++ {
		cmd := exec.Command(s.binary, s.args...)
		cmd.Env = append(os.Environ(), s.env...)
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true} // survive the parent
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("spawn worker process: %w", err)
		}
		pid := cmd.Process.Pid
		s.pids = append(s.pids, pid)

		// Reap the child when it exits so it doesn't linger as a zombie.
		go func() { _ = cmd.Wait() }()
	}
	return nil
}

// Running probes the spawned PIDs and reports how many are still alive,
// dropping dead ones from the tracked set.
func (s *Spawner) Running(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alive := s.pids[:0]
	for _, pid := range s.pids {
		if processAlive(pid) {
			alive = append(alive, pid)
		}
	}
	s.pids = alive
	return len(alive), nil
}

// processAlive uses signal 0: delivery is not attempted, only the
// existence and reachability of the process is checked.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
