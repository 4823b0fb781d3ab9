package adapter

import "context"

// ProcessRole names the entry point a child process runs.
type ProcessRole string

const (
	RoleWorker       ProcessRole = "worker"
	RoleRegistration ProcessRole = "registration"
)

// ProcessManager spawns and stops the per-bot worker processes.
type ProcessManager interface {
	SpawnWorker(ctx context.Context, botToken string) (pid int, err error)
	SpawnRegistration(ctx context.Context) (pid int, err error)
	// Terminate stops the worker recorded for botToken: graceful signal, grace
	// period, then kill. It refuses pids that no longer run a worker for that token.
	Terminate(ctx context.Context, pid int, botToken string) error
	// StopAll terminates every child this manager spawned.
	StopAll(ctx context.Context)
}
