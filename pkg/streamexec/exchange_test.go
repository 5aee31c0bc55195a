//go:build unix

package streamexec_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/subproc/pkg/streamexec"
	"github.com/walteh/subproc/pkg/subprocess"
	"github.com/walteh/subproc/pkg/testing/tlog"
)

func lookPath(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return path
}

func TestExchange_LargePayloadDoesNotDeadlock(t *testing.T) {
	ctx := tlog.SetupSlogForTest(t)
	cat := lookPath(t, "cat")

	payload := make([]byte, 1<<20)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	h, err := subprocess.Spawn(ctx, []string{cat}, true, true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	stats, err := streamexec.Exchange(ctx, h, bytes.NewReader(payload), &out)
	require.NoError(t, err)

	assert.Equal(t, int64(len(payload)), stats.Supplied)
	assert.Equal(t, int64(len(payload)), stats.Ingested)
	assert.True(t, bytes.Equal(payload, out.Bytes()), "output differs from input")

	st, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, st.Success(), "cat failed: %s", st)
}

func TestLines_Sort(t *testing.T) {
	ctx := tlog.SetupSlogForTest(t)
	sort := lookPath(t, "sort")

	h, err := subprocess.Spawn(ctx, []string{sort}, true, true,
		subprocess.WithEnv(append(os.Environ(), "LC_ALL=C")))
	require.NoError(t, err)

	got, err := streamexec.Lines(ctx, h, []string{"put", "a", "ring", "on", "it"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "it", "on", "put", "ring"}, got)

	st, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, st.Success(), "sort failed: %s", st)
}

func TestLines_NoInputNoOutput(t *testing.T) {
	ctx := tlog.SetupSlogForTest(t)
	cat := lookPath(t, "cat")

	h, err := subprocess.Spawn(ctx, []string{cat}, true, true)
	require.NoError(t, err)

	got, err := streamexec.Lines(ctx, h, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	st, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, st.Success())
}

func TestExchange_IngestOnly(t *testing.T) {
	ctx := tlog.SetupSlogForTest(t)
	echo := lookPath(t, "echo")

	h, err := subprocess.Spawn(ctx, []string{echo, "hello", "world"}, false, true)
	require.NoError(t, err)

	var out bytes.Buffer
	stats, err := streamexec.Exchange(ctx, h, bytes.NewReader([]byte("ignored")), &out)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Supplied)
	assert.Equal(t, "hello world\n", out.String())

	st, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, st.Success())
}

func TestExchange_NilInputClosesSupply(t *testing.T) {
	ctx := tlog.SetupSlogForTest(t)
	cat := lookPath(t, "cat")

	h, err := subprocess.Spawn(ctx, []string{cat}, true, true)
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = streamexec.Exchange(ctx, h, nil, &out)
	require.NoError(t, err)
	assert.Empty(t, out.String())

	st, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, st.Success(), "cat should see end-of-input: %s", st)
}

func TestExchange_CancelClosesPipes(t *testing.T) {
	ctx := tlog.SetupSlogForTest(t)
	sleep := lookPath(t, "sleep")

	h, err := subprocess.Spawn(ctx, []string{sleep, "60"}, false, true)
	require.NoError(t, err)
	defer func() {
		_ = h.Terminate()
		_, _ = h.Wait(ctx)
	}()

	cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = streamexec.Exchange(cctx, h, nil, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExchange_ChildStopsReadingEarly(t *testing.T) {
	ctx := tlog.SetupSlogForTest(t)
	head := lookPath(t, "head")

	input := append([]byte("first\n"), bytes.Repeat([]byte("x"), 4<<20)...)

	h, err := subprocess.Spawn(ctx, []string{head, "-n", "1"}, true, true)
	require.NoError(t, err)

	var out bytes.Buffer
	stats, err := streamexec.Exchange(ctx, h, bytes.NewReader(input), &out)
	require.NoError(t, err, "a child that exits before draining its input is not an exchange failure")
	assert.Less(t, stats.Supplied, int64(len(input)))
	assert.Equal(t, "first\n", out.String())

	st, err := h.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, st.Success(), "head failed: %s", st)
}
