package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	gproc "github.com/shirou/gopsutil/v4/process"

	"telegram-pix-manager/internal/domain"
	"telegram-pix-manager/internal/domain/ports/adapter"
	"telegram-pix-manager/internal/infra/logging"
	"telegram-pix-manager/internal/infra/metrics"
)

var _ adapter.ProcessManager = (*Manager)(nil)

const pollInterval = 50 * time.Millisecond

type Options struct {
	// Executable defaults to the running binary.
	Executable string
	// ConfigPath is handed to every child as --config.
	ConfigPath string
	Dev        bool
	KillGrace  time.Duration
}

type child struct {
	cmd   *exec.Cmd
	role  adapter.ProcessRole
	token string
	done  chan struct{}
}

// Manager spawns worker and registration processes and keeps their handles,
// so children it started are stopped through the handle instead of a bare pid.
type Manager struct {
	opts Options
	log  *zerolog.Logger

	argv func(role adapter.ProcessRole, token string) []string

	mu       sync.Mutex
	children map[int]*child
}

func NewManager(opts Options, logger *zerolog.Logger) (*Manager, error) {
	if opts.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		opts.Executable = exe
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = time.Second
	}
	l := logger.With().Str("component", "ProcessManager").Logger()
	m := &Manager{
		opts:     opts,
		log:      &l,
		children: make(map[int]*child),
	}
	m.argv = m.defaultArgs
	return m, nil
}

func (m *Manager) defaultArgs(role adapter.ProcessRole, token string) []string {
	var args []string
	if m.opts.ConfigPath != "" {
		args = append(args, "--config", m.opts.ConfigPath)
	}
	if m.opts.Dev {
		args = append(args, "--dev")
	}
	args = append(args, string(role))
	if token != "" {
		args = append(args, token)
	}
	return args
}

func (m *Manager) SpawnWorker(ctx context.Context, botToken string) (int, error) {
	return m.spawn(ctx, adapter.RoleWorker, botToken)
}

func (m *Manager) SpawnRegistration(ctx context.Context) (int, error) {
	return m.spawn(ctx, adapter.RoleRegistration, "")
}

func (m *Manager) spawn(ctx context.Context, role adapter.ProcessRole, token string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// Children outlive the request that spawned them; StopAll ends them.
	cmd := exec.Command(m.opts.Executable, m.argv(role, token)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", role, err)
	}

	c := &child{cmd: cmd, role: role, token: token, done: make(chan struct{})}
	pid := cmd.Process.Pid

	m.mu.Lock()
	m.children[pid] = c
	metrics.SetChildProcesses(len(m.children))
	m.mu.Unlock()
	metrics.IncProcessSpawned(string(role))

	log := m.log.With().Str("role", string(role)).Int("pid", pid).Logger()
	if token != "" {
		log = log.With().Str("bot", logging.BotID(token)).Logger()
	}
	log.Info().Msg("child started")

	go func() {
		err := cmd.Wait()
		m.mu.Lock()
		delete(m.children, pid)
		metrics.SetChildProcesses(len(m.children))
		m.mu.Unlock()
		close(c.done)
		if err != nil {
			log.Warn().Err(err).Msg("child exited")
			return
		}
		log.Info().Msg("child exited")
	}()
	return pid, nil
}

// Running reports how many spawned children are still alive.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.children)
}

func (m *Manager) Terminate(ctx context.Context, pid int, botToken string) error {
	if pid <= 0 {
		return fmt.Errorf("%w: pid %d", domain.ErrInvalidArgument, pid)
	}
	m.mu.Lock()
	c, owned := m.children[pid]
	m.mu.Unlock()

	if owned {
		if c.token != botToken {
			return fmt.Errorf("%w: pid %d", domain.ErrStaleProcess, pid)
		}
		return m.stopChild(ctx, pid, c)
	}
	return m.stopForeign(ctx, pid, botToken)
}

func (m *Manager) stopChild(ctx context.Context, pid int, c *child) error {
	select {
	case <-c.done:
		return domain.ErrProcessExited
	default:
	}
	if err := c.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return domain.ErrProcessExited
		}
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}

	grace := time.NewTimer(m.opts.KillGrace)
	defer grace.Stop()
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-grace.C:
	}

	m.log.Warn().Int("pid", pid).Msg("grace period elapsed, killing child")
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopForeign handles a pid known only from the store. The pid is signalled
// only while its command line still names a worker for botToken; the
// process create time guards the grace loop against pid reuse.
func (m *Manager) stopForeign(ctx context.Context, pid int, botToken string) error {
	proc, err := gproc.NewProcessWithContext(ctx, int32(pid))
	if errors.Is(err, gproc.ErrorProcessNotRunning) {
		return domain.ErrProcessExited
	}
	if err != nil {
		return fmt.Errorf("%w: pid %d: %v", domain.ErrStaleProcess, pid, err)
	}
	args, err := proc.CmdlineSliceWithContext(ctx)
	if err != nil {
		if running, _ := proc.IsRunningWithContext(ctx); !running {
			return domain.ErrProcessExited
		}
		return fmt.Errorf("%w: pid %d: %v", domain.ErrStaleProcess, pid, err)
	}
	if !matchesWorker(args, botToken) {
		return fmt.Errorf("%w: pid %d", domain.ErrStaleProcess, pid)
	}

	if err := proc.TerminateWithContext(ctx); err != nil {
		if running, _ := proc.IsRunningWithContext(ctx); !running {
			return domain.ErrProcessExited
		}
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}

	grace := time.NewTimer(m.opts.KillGrace)
	defer grace.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-grace.C:
			m.log.Warn().Int("pid", pid).Msg("grace period elapsed, killing process")
			if err := proc.KillWithContext(ctx); err != nil {
				if running, _ := proc.IsRunningWithContext(ctx); running {
					return fmt.Errorf("kill pid %d: %w", pid, err)
				}
			}
			return nil
		case <-ticker.C:
			if running, err := proc.IsRunningWithContext(ctx); err == nil && !running {
				return nil
			}
		}
	}
}

// matchesWorker reports whether args run the worker entry point for token.
func matchesWorker(args []string, token string) bool {
	if token == "" {
		return false
	}
	for i := 0; i+1 < len(args); i++ {
		if (args[i] == string(adapter.RoleWorker) || args[i] == "Worker") && args[i+1] == token {
			return true
		}
	}
	return false
}

// StopAll terminates every live child in parallel and waits for them.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	snapshot := make(map[int]*child, len(m.children))
	for pid, c := range m.children {
		snapshot[pid] = c
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for pid, c := range snapshot {
		wg.Add(1)
		go func(pid int, c *child) {
			defer wg.Done()
			if err := m.stopChild(ctx, pid, c); err != nil && !errors.Is(err, domain.ErrProcessExited) {
				m.log.Error().Err(err).Int("pid", pid).Str("role", string(c.role)).Msg("stop child")
			}
		}(pid, c)
	}
	wg.Wait()
	m.log.Info().Int("count", len(snapshot)).Msg("all children stopped")
}
