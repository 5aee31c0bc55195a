//go:build unix

package subprocess

import (
	"os"
)

// ExecFailureMode selects how a failure to exec the target program is reported.
type ExecFailureMode int

const (
	// ExecFailureAsExitStatus spawns through the exec trampoline. Spawn succeeds and the
	// child exits with ExecFailureExitCode if the target cannot be executed.
	ExecFailureAsExitStatus ExecFailureMode = iota
	// ExecFailureAsError fork-execs the target directly. Exec failures are returned by
	// Spawn as a *SpawnError of kind ExecFailure.
	ExecFailureAsError
)

type config struct {
	env             []string
	dir             string
	stderr          *os.File
	execFailureMode ExecFailureMode
	trampolinePath  string
	openPipe        pipeOpener
}

type Option func(*config)

func newConfig(opts ...Option) *config {
	cfg := &config{
		execFailureMode: ExecFailureAsExitStatus,
		openPipe:        openPipe,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.env == nil {
		cfg.env = os.Environ()
	}
	return cfg
}

// WithEnv sets the child's environment. The default is os.Environ().
func WithEnv(env []string) Option {
	return func(c *config) {
		c.env = env
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(c *config) {
		c.dir = dir
	}
}

// WithStderr places f on the child's standard error. The default inherits the parent's.
func WithStderr(f *os.File) Option {
	return func(c *config) {
		c.stderr = f
	}
}

// WithExecFailureMode selects how Spawn reports a target that cannot be executed. The
// default is ExecFailureAsExitStatus.
func WithExecFailureMode(mode ExecFailureMode) Option {
	return func(c *config) {
		c.execFailureMode = mode
	}
}

// WithTrampolinePath overrides the executable re-executed as the exec trampoline. It must
// be a binary that imports this package.
func WithTrampolinePath(path string) Option {
	return func(c *config) {
		c.trampolinePath = path
	}
}

func withPipeOpener(open pipeOpener) Option {
	return func(c *config) {
		c.openPipe = open
	}
}

func (m ExecFailureMode) String() string {
	switch m {
	case ExecFailureAsExitStatus:
		return "exit-status"
	case ExecFailureAsError:
		return "error"
	default:
		return "unknown"
	}
}
