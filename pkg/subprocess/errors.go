package subprocess

import (
	"fmt"

	"gitlab.com/tozd/go/errors"
)

// FailureKind says which stage of Spawn failed.
type FailureKind int

const (
	// ProvisionFailure means a pipe could not be created. No child exists.
	ProvisionFailure FailureKind = iota + 1
	// SpawnFailure means the child process could not be created. No child exists.
	SpawnFailure
	// ExecFailure is only reported in ExecFailureAsError mode. The child was created,
	// failed to exec, and has already been reaped.
	ExecFailure
)

func (k FailureKind) String() string {
	switch k {
	case ProvisionFailure:
		return "provision failure"
	case SpawnFailure:
		return "spawn failure"
	case ExecFailure:
		return "exec failure"
	default:
		return fmt.Sprintf("unknown failure (%d)", int(k))
	}
}

var (
	ErrEmptyArgv = errors.Base("empty argument vector")

	// Kind sentinels, matched with errors.Is against a *SpawnError.
	ErrProvision = errors.Base("provision failure")
	ErrSpawn     = errors.Base("spawn failure")
	ErrExec      = errors.Base("exec failure")
)

// SpawnError is the only error kind returned by Spawn.
type SpawnError struct {
	Kind FailureKind
	Path string
	Err  error
}

func newSpawnError(kind FailureKind, path string, err error) *SpawnError {
	return &SpawnError{
		Kind: kind,
		Path: path,
		Err:  errors.WithStack(err),
	}
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%s while spawning %q: %v", e.Kind, e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

func (e *SpawnError) Is(target error) bool {
	switch target {
	case ErrProvision:
		return e.Kind == ProvisionFailure
	case ErrSpawn:
		return e.Kind == SpawnFailure
	case ErrExec:
		return e.Kind == ExecFailure
	}
	return false
}
