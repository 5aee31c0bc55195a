package main

import (
	"bytes"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/subproc/pkg/subprocess"
	"github.com/walteh/subproc/pkg/testing/tlog"
)

type appResult struct {
	stdout string
	stderr string
	code   int
}

func runApp(t *testing.T, stdin string, args ...string) appResult {
	t.Helper()
	ctx := tlog.SetupSlogForTest(t)

	var stdout, stderr bytes.Buffer
	app := newApp(strings.NewReader(stdin), &stdout, &stderr)

	err := app.RunContext(ctx, append([]string{"subproc", "--no-color", "--log-level", "error"}, args...))
	code := exitCode(&stderr, err)

	return appResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       int
		wantStderr string
	}{
		{name: "nil", err: nil, want: 0},
		{
			name: "child exit",
			err:  &childExitError{status: subprocess.ExitStatus{Pid: 7, Code: 3, Exited: true}},
			want: 3,
		},
		{
			name: "child signaled",
			err:  errors.Errorf("wrapped: %w", &childExitError{status: subprocess.ExitStatus{Pid: 7, Code: -1, Signaled: true, Signal: syscall.SIGTERM}}),
			want: 128 + int(syscall.SIGTERM),
		},
		{
			name:       "spawn error",
			err:        &subprocess.SpawnError{Kind: subprocess.SpawnFailure, Path: "/bin/sort", Err: syscall.EAGAIN},
			want:       exitSpawnError,
			wantStderr: "Problem encountered while spawning second process to run \"/bin/sort\".",
		},
		{name: "other", err: errors.New("boom"), want: exitUnknownError, wantStderr: "subproc: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			assert.Equal(t, tt.want, exitCode(&stderr, tt.err))
			if tt.wantStderr == "" {
				assert.Empty(t, stderr.String())
			} else {
				assert.Contains(t, stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestRun_SupplyAndIngest(t *testing.T) {
	res := runApp(t, "hello\nworld\n", "run", "--supply", "--ingest", "--", "cat")

	assert.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "hello\nworld\n", res.stdout)
}

func TestRun_ChildExitCodeIsMirrored(t *testing.T) {
	res := runApp(t, "", "run", "--", "sh", "-c", "exit 5")

	assert.Equal(t, 5, res.code)
}

func TestRun_ExecFailureIsExitStatus(t *testing.T) {
	res := runApp(t, "", "run", "--", "/nonexistent/program")

	assert.Equal(t, subprocess.ExecFailureExitCode, res.code)
}

func TestRun_SyncExecErrorsIsSpawnError(t *testing.T) {
	res := runApp(t, "", "run", "--sync-exec-errors", "--", "/nonexistent/program")

	assert.Equal(t, exitSpawnError, res.code)
	assert.Contains(t, res.stderr, "Problem encountered while spawning second process to run \"/nonexistent/program\".")
}

func TestRun_MissingProgram(t *testing.T) {
	res := runApp(t, "", "run")

	assert.Equal(t, exitUnknownError, res.code)
	assert.Contains(t, res.stderr, "missing PROGRAM")
}

func TestRun_BadLogLevel(t *testing.T) {
	ctx := tlog.SetupSlogForTest(t)
	var stdout, stderr bytes.Buffer
	app := newApp(strings.NewReader(""), &stdout, &stderr)

	err := app.RunContext(ctx, []string{"subproc", "--log-level", "loud", "run", "--", "true"})
	require.Error(t, err)
	assert.Equal(t, exitUnknownError, exitCode(&stderr, err))
}

func TestSelftest(t *testing.T) {
	res := runApp(t, "", "selftest")

	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, "a\nit\non\nput\nring\n", res.stdout)
}

func TestResolveProgram(t *testing.T) {
	assert.Equal(t, "./local", resolveProgram("./local"))
	assert.Equal(t, "definitely-not-a-real-program-xyz", resolveProgram("definitely-not-a-real-program-xyz"))

	sh := resolveProgram("sh")
	assert.True(t, strings.HasSuffix(sh, "/sh"), sh)
}
