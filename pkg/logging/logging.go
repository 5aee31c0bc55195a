package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lmittmann/tint"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
)

// Options controls how the process-wide logger is built.
type Options struct {
	Level       slog.Leveler
	Color       bool
	ProcessName string
}

// SetupSlogSimpleToWriter installs a debug-level logger writing to w.
func SetupSlogSimpleToWriter(ctx context.Context, w io.Writer, color bool) context.Context {
	return SetupSlogWithOptions(ctx, w, Options{Level: slog.LevelDebug, Color: color})
}

// SetupSlogWithOptions installs a tint handler wrapped in a slog-context handler as the
// default logger and returns ctx carrying the same logger.
func SetupSlogWithOptions(ctx context.Context, w io.Writer, opts Options) context.Context {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}

	tintHandler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02 15:04 05.0000",
		AddSource:  true,
		NoColor:    !opts.Color,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			a = formatErrorStacks(groups, a)
			return Redact(groups, a)
		},
	})

	ctxHandler := slogctx.NewHandler(tintHandler, &slogctx.HandlerOptions{})

	mylogger := slog.New(ctxHandler)
	if opts.ProcessName != "" {
		mylogger = mylogger.With("process", opts.ProcessName)
	}
	slog.SetDefault(mylogger)

	return slogctx.NewCtx(ctx, mylogger)
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, errors.Errorf("parsing log level %q: %w", s, err)
	}
	return lvl, nil
}

func packageName(frame runtime.Frame) string {
	lastSlash := strings.LastIndex(frame.Function, "/")
	if lastSlash == -1 {
		return ""
	}
	almost := frame.Function[:lastSlash]
	remaining := frame.Function[lastSlash+1:]
	firstDot := strings.Index(remaining, ".")
	if firstDot == -1 {
		return ""
	}
	return almost + "/" + remaining[:firstDot]
}

func formatErrorStacks(groups []string, a slog.Attr) slog.Attr {
	if a.Key != "error" {
		return a
	}
	err, ok := a.Value.Any().(error)
	if !ok {
		return a
	}
	var terr errors.E
	if !errors.As(err, &terr) || len(terr.StackTrace()) == 0 {
		return a
	}

	frames := runtime.CallersFrames(terr.StackTrace())
	firstFramed, _ := frames.Next()
	pkg := packageName(firstFramed)
	uri := fmt.Sprintf("%s:%d", firstFramed.File, firstFramed.Line)
	a.Value = slog.GroupValue(
		slog.String("error", err.Error()),
		slog.String("func", strings.TrimPrefix(firstFramed.Function, pkg+".")),
		slog.String("package", pkg),
		// the quotes are to make sure the file name can be clicked by vscode/cursor
		slog.String("file", "'"+filepath.Base(filepath.Dir(uri))+"/"+filepath.Base(uri)+"'"),
	)
	return a
}
