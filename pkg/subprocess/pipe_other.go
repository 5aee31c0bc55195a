//go:build unix && !linux

package subprocess

import (
	"syscall"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/unix"
)

// no pipe2 here, so hold the fork lock until both ends are close-on-exec
func openPipe() (int, int, error) {
	var p [2]int

	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()

	if err := unix.Pipe(p[:]); err != nil {
		return NotInUse, NotInUse, errors.Errorf("pipe: %w", err)
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])

	return p[0], p[1], nil
}
