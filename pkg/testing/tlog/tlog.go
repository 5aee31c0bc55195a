package tlog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	slogctx "github.com/veqryn/slog-context"

	"github.com/walteh/subproc/pkg/logging"
)

func SetupSlogForTestWithContext(t testing.TB, ctx context.Context) context.Context {
	var simpctx context.Context

	existing := slogctx.FromCtx(ctx)
	if existing != nil && existing != slog.Default() {
		simpctx = ctx
	} else {
		simpctx = logging.SetupSlogSimpleToWriter(ctx, os.Stdout, os.Getenv("NO_COLOR") == "")
	}

	t.Cleanup(logging.RegisterRedactedLogValue(simpctx, os.TempDir()+"/", "[os-tmp-dir]"))
	t.Cleanup(logging.RegisterRedactedLogValue(simpctx, filepath.Dir(t.TempDir()), "[test-tmp-dir]")) // higher priority than os-tmp-dir

	return simpctx
}

func SetupSlogForTest(t testing.TB) context.Context {
	return SetupSlogForTestWithContext(t, t.Context())
}
