package main

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/manthysbr/localagent/internal/core/services"
)

func TestNewAPIServer_BusyPortFailsImmediately(t *testing.T) {
	held, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer held.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := domain.HTTPConfig{Addr: held.Addr().String(), AllowedOrigins: []string{"*"}}

	srv, ln, err := newAPIServer(logger, cfg, nil, services.NewTraceCollector(logger, nil), nil)
	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Nil(t, ln)
	assert.Contains(t, err.Error(), "api server listen on "+cfg.Addr)
}

func TestNewAPIServer_ServesHealth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := domain.HTTPConfig{Addr: "127.0.0.1:0", AllowedOrigins: []string{"*"}}

	srv, ln, err := newAPIServer(logger, cfg, nil, services.NewTraceCollector(logger, nil), nil)
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
