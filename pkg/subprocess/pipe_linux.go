//go:build linux

package subprocess

import (
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/unix"
)

func openPipe() (int, int, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC); err != nil {
		return NotInUse, NotInUse, errors.Errorf("pipe2: %w", err)
	}
	return p[0], p[1], nil
}
