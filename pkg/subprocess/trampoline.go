//go:build unix

package subprocess

import (
	"fmt"
	"os"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/sys/unix"
)

// ExecFailureExitCode is the status a trampolined child exits with when the target
// program cannot be executed.
const ExecFailureExitCode = 127

// trampolineArg0 marks a process started as an exec trampoline.
const trampolineArg0 = "subproc-exec-trampoline"

func init() {
	if len(os.Args) == 0 || os.Args[0] != trampolineArg0 {
		return
	}
	runTrampoline(os.Args[1:])
}

// runTrampoline replaces the process image with argv[0]. It never returns.
func runTrampoline(argv []string) {
	if len(argv) == 0 {
		fmt.Fprintln(os.Stderr, "subproc: trampoline started without a target")
		os.Exit(ExecFailureExitCode)
	}

	err := unix.Exec(argv[0], argv, os.Environ())

	fmt.Fprintf(os.Stderr, "subproc: exec %s: %v\n", argv[0], err)
	os.Exit(ExecFailureExitCode)
}

func trampolineArgv(argv []string) []string {
	out := make([]string, 0, len(argv)+1)
	out = append(out, trampolineArg0)
	return append(out, argv...)
}

func (c *config) trampoline() (string, error) {
	if c.trampolinePath != "" {
		return c.trampolinePath, nil
	}
	self, err := os.Executable()
	if err != nil {
		return "", errors.Errorf("locating trampoline executable: %w", err)
	}
	return self, nil
}
