package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/subproc/pkg/streamexec"
	"github.com/walteh/subproc/pkg/subprocess"
)

var selftestWords = []string{"put", "a", "ring", "on", "it"}

type scenario struct {
	name   string
	supply bool
	ingest bool
	run    func(ctx context.Context, h *subprocess.Handle, out io.Writer) error
}

func selftestScenarios() []scenario {
	return []scenario{
		{
			name:   "supply and ingest",
			supply: true,
			ingest: true,
			run: func(ctx context.Context, h *subprocess.Handle, out io.Writer) error {
				lines, err := streamexec.Lines(ctx, h, selftestWords)
				if err != nil {
					return err
				}
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
				return waitSuccess(ctx, h)
			},
		},
		{
			name:   "supply and no ingest",
			supply: true,
			run: func(ctx context.Context, h *subprocess.Handle, _ io.Writer) error {
				input := strings.NewReader(strings.Join(selftestWords, "\n") + "\n")
				if _, err := streamexec.Exchange(ctx, h, input, nil); err != nil {
					return err
				}
				return waitSuccess(ctx, h)
			},
		},
		{
			name:   "no supply and ingest",
			ingest: true,
			run:    terminateAndWait,
		},
		{
			name: "no supply and no ingest",
			run:  terminateAndWait,
		},
		{
			name:   "closing supply ends input",
			supply: true,
			run: func(ctx context.Context, h *subprocess.Handle, _ io.Writer) error {
				if err := h.Supply.Close(); err != nil {
					return errors.Errorf("closing supply: %w", err)
				}
				return waitSuccess(ctx, h)
			},
		},
	}
}

func selftestCommand() *cli.Command {
	return &cli.Command{
		Name:  "selftest",
		Usage: "exercise every pipe combination against a line-sorting program",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "sort",
				Usage:   "sort program to spawn",
				Value:   "sort",
				EnvVars: []string{"SUBPROC_SORT"},
			},
		},
		Action: func(cCtx *cli.Context) error {
			sortPath := resolveProgram(cCtx.String("sort"))
			env := append(os.Environ(), "LC_ALL=C")

			for _, sc := range selftestScenarios() {
				ctx := slogctx.With(cCtx.Context, "scenario", sc.name)
				if err := runScenario(ctx, sc, []string{sortPath}, cCtx.App.Writer, subprocess.WithEnv(env)); err != nil {
					return err
				}
				slogctx.FromCtx(ctx).InfoContext(ctx, "scenario passed")
			}
			return nil
		},
	}
}

func runScenario(ctx context.Context, sc scenario, argv []string, out io.Writer, opts ...subprocess.Option) error {
	h, err := subprocess.Spawn(ctx, argv, sc.supply, sc.ingest, opts...)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := checkHandle(h, sc.supply, sc.ingest); err != nil {
		_ = h.Terminate()
		_, _ = h.Wait(ctx)
		return errors.Errorf("%s: %w", sc.name, err)
	}

	if err := sc.run(ctx, h, out); err != nil {
		return errors.Errorf("%s: %w", sc.name, err)
	}
	return nil
}

func checkHandle(h *subprocess.Handle, supply, ingest bool) error {
	if h.Pid <= 0 {
		return errors.Errorf("invalid pid %d", h.Pid)
	}
	if supply != (h.SupplyFD() != subprocess.NotInUse) {
		return errors.Errorf("supply descriptor %d does not match request %t", h.SupplyFD(), supply)
	}
	if ingest != (h.IngestFD() != subprocess.NotInUse) {
		return errors.Errorf("ingest descriptor %d does not match request %t", h.IngestFD(), ingest)
	}
	return nil
}

func waitSuccess(ctx context.Context, h *subprocess.Handle) error {
	st, err := h.Wait(ctx)
	if err != nil {
		return err
	}
	if !st.Success() {
		return &childExitError{status: st}
	}
	return nil
}

// terminateAndWait mirrors a caller that gives up on a child: signal it, then reap it.
func terminateAndWait(ctx context.Context, h *subprocess.Handle, _ io.Writer) error {
	if err := h.Terminate(); err != nil {
		return err
	}
	st, err := h.Wait(ctx)
	if err != nil {
		return err
	}
	slogctx.FromCtx(ctx).DebugContext(ctx, "terminated child reaped", slog.String("status", st.String()))
	return nil
}
