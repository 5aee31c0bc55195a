package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/subproc/pkg/logging"
	"github.com/walteh/subproc/pkg/subprocess"
)

const (
	exitSpawnError   = 1
	exitUnknownError = 2
)

func main() {
	app := newApp(os.Stdin, os.Stdout, os.Stderr)

	err := app.RunContext(context.Background(), os.Args)

	os.Exit(exitCode(os.Stderr, err))
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:        "subproc",
		Usage:       "spawn a program with its stdin and stdout wired to pipes",
		HideVersion: true,
		Reader:      stdin,
		Writer:      stdout,
		ErrWriter:   stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"SUBPROC_LOG_LEVEL"},
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Usage:   "disable colored log output",
				EnvVars: []string{"NO_COLOR"},
			},
		},
		Before: func(cCtx *cli.Context) error {
			level, err := logging.ParseLevel(cCtx.String("log-level"))
			if err != nil {
				return err
			}
			cCtx.Context = logging.SetupSlogWithOptions(cCtx.Context, cCtx.App.ErrWriter, logging.Options{
				Level:       level,
				Color:       !cCtx.Bool("no-color"),
				ProcessName: "subproc",
			})
			return nil
		},
		// exit codes are decided in main
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			runCommand(),
			selftestCommand(),
		},
	}
}

// exitCode maps the error returned by the app to a process exit status, writing a
// diagnostic for anything that is not the child's own exit.
func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}

	var child *childExitError
	if errors.As(err, &child) {
		return child.ExitCode()
	}

	var serr *subprocess.SpawnError
	if errors.As(err, &serr) {
		fmt.Fprintf(stderr, "Problem encountered while spawning second process to run %q.\n", serr.Path)
		fmt.Fprintf(stderr, "More details here: %v\n", err)
		return exitSpawnError
	}

	fmt.Fprintf(stderr, "subproc: %v\n", err)
	return exitUnknownError
}
