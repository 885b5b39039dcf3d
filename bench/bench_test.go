package bench

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/notargets/VecAdd/config"
	"github.com/notargets/VecAdd/runner"
	"github.com/notargets/VecAdd/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(n int) *config.Config {
	cfg := config.Default()
	cfg.N = n
	cfg.KernelPath = "../kernels/vector_ops.okl"
	cfg.Backends = []string{`{"mode": "Serial"}`}
	cfg.Verify = true
	cfg.Clock = testclock.NewClock(time.Now())
	return &cfg
}

// parseSnapshot turns a printed full-length snapshot back into integers.
func parseSnapshot(t *testing.T, block string) []int {
	t.Helper()
	var out []int
	for _, f := range strings.Fields(block) {
		v, err := strconv.Atoi(f)
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestRun_TenElements(t *testing.T) {
	cfg := testConfig(10)
	var buf bytes.Buffer

	rep, err := Run(context.Background(), cfg, &buf)
	require.NoError(t, err)
	assert.True(t, rep.Verified)
	assert.Equal(t, "Serial", rep.DeviceMode)
	assert.Equal(t, time.Duration(0), rep.Elapsed, "test clock does not advance")

	blocks := strings.Split(buf.String(), "----------------------------")
	require.Len(t, blocks, 4, "three snapshots plus the timing line")

	a := parseSnapshot(t, blocks[0])
	b := parseSnapshot(t, blocks[1])
	c := parseSnapshot(t, blocks[2])
	require.Len(t, a, 10)
	require.Len(t, b, 10)
	require.Len(t, c, 10)
	for i := range c {
		assert.Less(t, a[i], vector.MaxValue)
		assert.Less(t, b[i], vector.MaxValue)
		assert.Equal(t, a[i]+b[i], c[i], "element %d", i)
	}
	assert.Contains(t, blocks[3], "Kernel Execution Time: 0.000000 ms")
}

func TestRun_LargeVector(t *testing.T) {
	cfg := testConfig(100000)
	var buf bytes.Buffer

	rep, err := Run(context.Background(), cfg, &buf)
	require.NoError(t, err)
	assert.True(t, rep.Verified)
	assert.Len(t, rep.Out, 100000)
	assert.Contains(t, buf.String(), " ..... ")
}

func TestRun_SeedReproducesInputs(t *testing.T) {
	cfg := testConfig(64)
	cfg.Print = false
	cfg.Seed = 99

	first, err := Run(context.Background(), cfg, &bytes.Buffer{})
	require.NoError(t, err)
	second, err := Run(context.Background(), cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, first.A, second.A)
	assert.Equal(t, first.B, second.B)

	cfg.Seed = 0
	third, err := Run(context.Background(), cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Len(t, third.A, 64)
	assert.NotEqual(t, first.A, third.A)
}

func TestRun_QuietPrintsTimingOnly(t *testing.T) {
	cfg := testConfig(10)
	cfg.Print = false
	var buf bytes.Buffer

	_, err := Run(context.Background(), cfg, &buf)
	require.NoError(t, err)
	assert.Equal(t, "Kernel Execution Time: 0.000000 ms\n", buf.String())
}

func TestRun_InvalidLength(t *testing.T) {
	for _, n := range []int{0, -3} {
		cfg := testConfig(n)
		var buf bytes.Buffer
		rep, err := Run(context.Background(), cfg, &buf)
		assert.Nil(t, rep)
		assert.Error(t, err)
		assert.Empty(t, buf.String(), "nothing is printed for a rejected length")
	}
}

func TestRun_MissingKernelSource(t *testing.T) {
	cfg := testConfig(10)
	cfg.KernelPath = filepath.Join(t.TempDir(), "nope.okl")
	// A backend that cannot open proves the device is never touched
	cfg.Backends = []string{`{"mode": "NoSuchBackend"}`}

	_, err := Run(context.Background(), cfg, &bytes.Buffer{})
	assert.True(t, errors.Is(err, runner.ErrKernelSourceNotFound), "got %v", err)
}

func TestRun_BuildFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.okl")
	require.NoError(t, os.WriteFile(path, []byte("@kernel void vector_add(int n) { oops }"), 0o644))

	cfg := testConfig(10)
	cfg.KernelPath = path
	_, err := Run(context.Background(), cfg, &bytes.Buffer{})
	assert.ErrorIs(t, err, runner.ErrBuildFailed)
}

func TestRun_UnknownKernelName(t *testing.T) {
	cfg := testConfig(10)
	cfg.KernelName = "vector_sub"
	_, err := Run(context.Background(), cfg, &bytes.Buffer{})
	assert.ErrorIs(t, err, runner.ErrBuildFailed)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testConfig(10), &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReportMilliseconds(t *testing.T) {
	rep := &Report{Elapsed: 1500 * time.Microsecond}
	assert.InDelta(t, 1.5, rep.Milliseconds(), 1e-12)
}
