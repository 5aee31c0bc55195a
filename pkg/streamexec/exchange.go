//go:build unix

// Package streamexec pumps data through the pipes of a spawned child.
package streamexec

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/subproc/pkg/subprocess"
)

// Stats counts the bytes moved by Exchange.
type Stats struct {
	Supplied int64
	Ingested int64
}

// Exchange copies input into the child's supply pipe and the child's ingest pipe into
// output at the same time, so neither side can stall on a full pipe buffer. Supply is
// closed once input is drained, which signals end-of-input to the child. Ingest is closed
// once the child closes its stdout. Either direction is skipped if the handle has no pipe
// for it; a nil input just closes Supply and a nil output discards.
//
// Exchange does not wait on the child. If ctx is cancelled both pipes are closed and
// ctx.Err() is returned.
func Exchange(ctx context.Context, h *subprocess.Handle, input io.Reader, output io.Writer) (Stats, error) {
	var stats Stats

	g, gctx := errgroup.WithContext(ctx)

	stop := context.AfterFunc(gctx, func() {
		_ = h.Close()
	})
	defer stop()

	if h.Supply != nil {
		g.Go(func() error {
			var copyErr error
			if input != nil {
				stats.Supplied, copyErr = io.Copy(h.Supply, input)
			}
			closeErr := h.Supply.Close()
			if errors.Is(copyErr, syscall.EPIPE) {
				// the child stopped reading, which is its call to make
				slogctx.FromCtx(ctx).DebugContext(ctx, "child closed its input early", "pid", h.Pid, "supplied", stats.Supplied)
				copyErr = nil
			}
			if copyErr != nil {
				return errors.Errorf("supplying child input: %w", copyErr)
			}
			if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				return errors.Errorf("closing supply pipe: %w", closeErr)
			}
			return nil
		})
	}

	if h.Ingest != nil {
		if output == nil {
			output = io.Discard
		}
		g.Go(func() error {
			var copyErr error
			stats.Ingested, copyErr = io.Copy(output, h.Ingest)
			closeErr := h.Ingest.Close()
			if copyErr != nil {
				return errors.Errorf("ingesting child output: %w", copyErr)
			}
			if closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				return errors.Errorf("closing ingest pipe: %w", closeErr)
			}
			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		err = ctx.Err()
	}

	slogctx.FromCtx(ctx).DebugContext(ctx, "exchange finished",
		"spawn_id", h.ID().String(),
		"pid", h.Pid,
		"supplied", humanize.Bytes(uint64(stats.Supplied)),
		"ingested", humanize.Bytes(uint64(stats.Ingested)),
		"error", err,
	)

	return stats, err
}

// Lines writes each line, newline terminated, to the child and returns the lines the
// child printed before closing its output.
func Lines(ctx context.Context, h *subprocess.Handle, lines []string) ([]string, error) {
	var in bytes.Buffer
	for _, line := range lines {
		in.WriteString(line)
		in.WriteByte('\n')
	}

	var out bytes.Buffer
	if _, err := Exchange(ctx, h, &in, &out); err != nil {
		return nil, err
	}

	text := strings.TrimSuffix(out.String(), "\n")
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}
