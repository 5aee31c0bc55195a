package main

import (
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/urfave/cli/v2"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/subproc/pkg/streamexec"
	"github.com/walteh/subproc/pkg/subprocess"
)

// childExitError carries a child's unsuccessful exit out of a command so main can
// mirror it.
type childExitError struct {
	status subprocess.ExitStatus
}

func (e *childExitError) Error() string {
	return fmt.Sprintf("child %d: %s", e.status.Pid, e.status)
}

// ExitCode follows the shell convention of 128+signal for signaled children.
func (e *childExitError) ExitCode() int {
	if e.status.Signaled {
		return 128 + int(e.status.Signal)
	}
	return e.status.Code
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "spawn PROGRAM, optionally piping this process's stdin into it and its stdout back",
		ArgsUsage: "[--] PROGRAM [ARGS...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "supply", Usage: "feed this process's stdin to the child through a pipe"},
			&cli.BoolFlag{Name: "ingest", Usage: "copy the child's stdout back through a pipe"},
			&cli.BoolFlag{
				Name:    "sync-exec-errors",
				Usage:   "report a program that cannot be executed as a spawn error instead of exit status 127",
				EnvVars: []string{"SUBPROC_SYNC_EXEC_ERRORS"},
			},
			&cli.StringFlag{Name: "dir", Usage: "working directory for the child"},
		},
		Action: func(cCtx *cli.Context) error {
			ctx := cCtx.Context

			argv := cCtx.Args().Slice()
			if len(argv) == 0 {
				return errors.New("run: missing PROGRAM")
			}
			argv[0] = resolveProgram(argv[0])

			opts := []subprocess.Option{}
			if dir := cCtx.String("dir"); dir != "" {
				opts = append(opts, subprocess.WithDir(dir))
			}
			if cCtx.Bool("sync-exec-errors") {
				opts = append(opts, subprocess.WithExecFailureMode(subprocess.ExecFailureAsError))
			}

			supply, ingest := cCtx.Bool("supply"), cCtx.Bool("ingest")

			h, err := subprocess.Spawn(ctx, argv, supply, ingest, opts...)
			if err != nil {
				return err
			}

			var input io.Reader
			if supply {
				input = cCtx.App.Reader
			}
			var output io.Writer
			if ingest {
				output = cCtx.App.Writer
			}

			if _, err := streamexec.Exchange(ctx, h, input, output); err != nil {
				_ = h.Terminate()
				_, _ = h.Wait(ctx)
				return errors.Errorf("exchanging data with %s: %w", argv[0], err)
			}

			st, err := h.Wait(ctx)
			if err != nil {
				return err
			}
			if !st.Success() {
				return &childExitError{status: st}
			}
			return nil
		},
	}
}

// resolveProgram searches PATH for bare program names. Anything containing a slash, or
// a name that cannot be found, is passed through so the exec failure surfaces as the
// child's exit status.
func resolveProgram(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return name
	}
	return path
}
