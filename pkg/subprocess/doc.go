// Package subprocess spawns a single child process with optional pipes wired to its
// standard input (the supply pipe) and standard output (the ingest pipe).
//
// Spawn returns once the child exists. It never waits for the child; the caller owns the
// returned descriptors and must reap the child exactly once, typically with Handle.Wait.
//
// Failures are reported on two channels. Pipe creation and process creation failures are
// returned synchronously as a *SpawnError. A failure to exec the target program happens in
// the child after the fork and is only observable as the child's exit status
// (ExecFailureExitCode) when it is waited on. WithExecFailureMode(ExecFailureAsError) trades
// that for a synchronous error.
//
// Any binary importing this package can act as the exec trampoline used for the default
// mode; see trampoline.go.
package subprocess
