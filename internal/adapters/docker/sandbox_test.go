package docker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSandbox needs a reachable Docker daemon; the image is pulled on first use.
func newTestSandbox(t *testing.T, timeout time.Duration) *Sandbox {
	t.Helper()
	if testing.Short() {
		t.Skip("docker sandbox tests skipped in -short mode")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sb, err := NewSandbox(context.Background(), logger, Options{
		Image:    "python:3.12-alpine",
		Timeout:  timeout,
		MemoryMB: 128,
		CPUs:     1,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = sb.Close() })
	return sb
}

func TestSandbox_Run(t *testing.T) {
	sb := newTestSandbox(t, time.Minute)

	res, err := sb.Run(context.Background(), "import sys\nprint(6 * 7)\nprint('warn', file=sys.stderr)")
	require.NoError(t, err)
	assert.Equal(t, "42\n", res.Stdout)
	assert.Equal(t, "warn\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "docker", sb.Name())
}

func TestSandbox_NoNetwork(t *testing.T) {
	sb := newTestSandbox(t, time.Minute)

	res, err := sb.Run(context.Background(), "import socket\nsocket.create_connection(('1.1.1.1', 53), timeout=2)")
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.Contains(t, res.Stderr, "Error")
}

func TestSandbox_Timeout(t *testing.T) {
	sb := newTestSandbox(t, 2*time.Second)

	// Warm the image so the pull does not count against the timeout.
	_, err := sb.Run(context.Background(), "pass")
	require.NoError(t, err)

	res, err := sb.Run(context.Background(), "import time\ntime.sleep(30)")
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}
