//go:build unix

package subprocess

import (
	"context"
	"fmt"
	"syscall"

	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/unix"
)

// ExitStatus is how a reaped child ended.
type ExitStatus struct {
	Pid        int
	Code       int // -1 unless Exited
	Signal     syscall.Signal
	Exited     bool
	Signaled   bool
	CoreDumped bool
}

func exitStatusFrom(pid int, ws unix.WaitStatus) ExitStatus {
	st := ExitStatus{Pid: pid, Code: -1}
	switch {
	case ws.Exited():
		st.Exited = true
		st.Code = ws.ExitStatus()
	case ws.Signaled():
		st.Signaled = true
		st.Signal = ws.Signal()
		st.CoreDumped = ws.CoreDump()
	}
	return st
}

func (s ExitStatus) Success() bool {
	return s.Exited && s.Code == 0
}

// ExecFailed reports whether the child ended the way a trampolined child does when its
// target could not be executed.
func (s ExitStatus) ExecFailed() bool {
	return s.Exited && s.Code == ExecFailureExitCode
}

func (s ExitStatus) String() string {
	switch {
	case s.Exited:
		return fmt.Sprintf("exit status %d", s.Code)
	case s.Signaled && s.CoreDumped:
		return fmt.Sprintf("signal: %s (core dumped)", s.Signal)
	case s.Signaled:
		return fmt.Sprintf("signal: %s", s.Signal)
	default:
		return "unknown status"
	}
}

// Wait blocks until pid exits and reaps it. pid must be a child of the calling process
// that has not been waited on yet. ctx only carries the logger; the wait itself cannot
// be cancelled.
func Wait(ctx context.Context, pid int) (ExitStatus, error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, 0, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return ExitStatus{Pid: pid, Code: -1}, errors.Errorf("waiting for pid %d: %w", pid, err)
		}
		if wpid != pid {
			return ExitStatus{Pid: pid, Code: -1}, errors.Errorf("waiting for pid %d: wait returned pid %d", pid, wpid)
		}
		break
	}

	st := exitStatusFrom(pid, ws)
	slogctx.FromCtx(ctx).DebugContext(ctx, "child reaped", "pid", pid, "status", st.String())
	return st, nil
}
