//go:build unix

package subprocess

import (
	"context"
	"os"
	"runtime"
	"syscall"

	"github.com/hashicorp/go-multierror"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/unix"

	"github.com/walteh/subproc/pkg/id"
)

// NotInUse is returned by SupplyFD and IngestFD when the pipe was not requested.
const NotInUse = -1

// Handle describes a spawned child. The caller owns Supply and Ingest from the moment
// Spawn returns and must reap Pid exactly once.
type Handle struct {
	Pid int

	// Supply is the write end of the child's stdin. Nil unless requested.
	Supply *os.File
	// Ingest is the read end of the child's stdout. Nil unless requested.
	Ingest *os.File

	supplyFD int
	ingestFD int
	id       id.ID
}

// SupplyFD is the raw descriptor behind Supply, or NotInUse if no supply pipe was
// requested.
func (h *Handle) SupplyFD() int {
	return h.supplyFD
}

// IngestFD is the raw descriptor behind Ingest, or NotInUse if no ingest pipe was
// requested.
func (h *Handle) IngestFD() int {
	return h.ingestFD
}

// ID identifies this spawn in logs.
func (h *Handle) ID() id.ID {
	return h.id
}

// Spawn starts argv[0] with argv as its argument vector. When wantSupply is set the
// child's stdin is a pipe whose write end is returned as Handle.Supply; when wantIngest
// is set the child's stdout is a pipe whose read end is returned as Handle.Ingest.
// Unpiped streams are inherited from the calling process.
//
// argv[0] must be a path; no PATH search is done. Spawn returns either a complete Handle
// or a *SpawnError, never both, and on error no descriptor it created is left open.
func Spawn(ctx context.Context, argv []string, wantSupply, wantIngest bool, opts ...Option) (*Handle, error) {
	if len(argv) == 0 {
		return nil, newSpawnError(SpawnFailure, "", ErrEmptyArgv)
	}

	cfg := newConfig(opts...)
	spawnID := id.NewID("spawn")
	log := slogctx.FromCtx(ctx).With("spawn_id", spawnID.String(), "path", argv[0])

	pipes, err := provisionPipes(cfg.openPipe, wantSupply, wantIngest)
	if err != nil {
		return nil, newSpawnError(ProvisionFailure, argv[0], err)
	}

	pid, err := forkExec(cfg, argv, pipes)

	// whatever happened, the child-side ends are not the parent's to keep
	if cerr := pipes.closeChildEnds(); cerr != nil {
		log.WarnContext(ctx, "closing child pipe ends in parent", "error", cerr)
	}

	if err != nil {
		if cerr := pipes.closeAll(); cerr != nil {
			log.WarnContext(ctx, "closing parent pipe ends after failed spawn", "error", cerr)
		}
		return nil, newSpawnError(classifyForkExecError(cfg.execFailureMode, err), argv[0], err)
	}

	h := &Handle{
		Pid:      pid,
		supplyFD: NotInUse,
		ingestFD: NotInUse,
		id:       spawnID,
	}
	if pipes.supply != nil {
		h.supplyFD = pipes.supply.w.release()
		h.Supply = newParentFile(h.supplyFD, "|supply")
	}
	if pipes.ingest != nil {
		h.ingestFD = pipes.ingest.r.release()
		h.Ingest = newParentFile(h.ingestFD, "|ingest")
	}

	log.DebugContext(ctx, "spawned child",
		"pid", pid,
		"argv", argv,
		"supply", wantSupply,
		"ingest", wantIngest,
		"exec_failure_mode", cfg.execFailureMode,
	)

	return h, nil
}

// forkExec creates the child with the pipe ends wired onto slots 0 and 1. Every other
// descriptor the parent holds is close-on-exec and does not survive into the target.
func forkExec(cfg *config, argv []string, pipes *pipeSet) (int, error) {
	stderr := uintptr(unix.Stderr)
	if cfg.stderr != nil {
		stderr = cfg.stderr.Fd()
	}

	attr := &syscall.ProcAttr{
		Dir: cfg.dir,
		Env: cfg.env,
		Files: []uintptr{
			pipes.childStdin(),
			pipes.childStdout(),
			stderr,
		},
	}
	defer runtime.KeepAlive(cfg.stderr)

	if cfg.execFailureMode == ExecFailureAsError {
		pid, err := syscall.ForkExec(argv[0], argv, attr)
		if err != nil {
			return 0, errors.Errorf("fork/exec %s: %w", argv[0], err)
		}
		return pid, nil
	}

	self, err := cfg.trampoline()
	if err != nil {
		return 0, err
	}

	pid, err := syscall.ForkExec(self, trampolineArgv(argv), attr)
	if err != nil {
		return 0, errors.Errorf("fork/exec trampoline %s: %w", self, err)
	}
	return pid, nil
}

// classifyForkExecError decides which side of the fork a direct fork/exec failed on.
// Only resource exhaustion is attributed to process creation.
func classifyForkExecError(mode ExecFailureMode, err error) FailureKind {
	if mode != ExecFailureAsError {
		return SpawnFailure
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EAGAIN, unix.ENOMEM, unix.ENOSYS:
			return SpawnFailure
		}
	}
	return ExecFailure
}

func newParentFile(fd int, name string) *os.File {
	// non-blocking descriptors are picked up by the runtime poller, which gives the
	// caller deadlines and lets Close interrupt a blocked Read
	_ = unix.SetNonblock(fd, true)
	return os.NewFile(uintptr(fd), name)
}

// Signal sends sig to the child.
func (h *Handle) Signal(sig syscall.Signal) error {
	if err := unix.Kill(h.Pid, sig); err != nil {
		return errors.Errorf("sending %s to pid %d: %w", sig, h.Pid, err)
	}
	return nil
}

// Terminate sends SIGTERM to the child. The child still has to be waited on.
func (h *Handle) Terminate() error {
	return h.Signal(unix.SIGTERM)
}

// Wait blocks until the child exits and reaps it.
func (h *Handle) Wait(ctx context.Context) (ExitStatus, error) {
	return Wait(ctx, h.Pid)
}

// Close closes whichever parent descriptors are still open. Descriptors the caller has
// already closed are skipped.
func (h *Handle) Close() (retErr error) {
	for _, f := range []*os.File{h.Supply, h.Ingest} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			retErr = multierror.Append(retErr, errors.Errorf("closing %s: %w", f.Name(), err))
		}
	}
	return retErr
}
