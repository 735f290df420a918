package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/manthysbr/localagent/internal/core/ports"
)

const (
	containerUser = "65534:65534" // nobody
	pidsLimit     = int64(64)
)

// Options configures the Docker sandbox.
type Options struct {
	Image    string
	Python   string
	Timeout  time.Duration
	MemoryMB int64
	CPUs     float64
}

// Sandbox runs each snippet in a throwaway container with no network,
// a read-only root filesystem and a small writable /tmp.
type Sandbox struct {
	cli    *client.Client
	opts   Options
	logger *slog.Logger
}

// Ensure Sandbox implements CodeSandbox
var _ ports.CodeSandbox = (*Sandbox)(nil)

// NewSandbox creates a Docker sandbox and checks the daemon is reachable.
func NewSandbox(ctx context.Context, logger *slog.Logger, opts Options) (*Sandbox, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	if opts.Python == "" {
		opts.Python = "python3"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Sandbox{cli: cli, opts: opts, logger: logger}, nil
}

func (s *Sandbox) Name() string { return "docker" }

// Close releases the Docker client.
func (s *Sandbox) Close() error { return s.cli.Close() }

func (s *Sandbox) Run(ctx context.Context, code string) (domain.ExecResult, error) {
	name := "localagent-exec-" + uuid.New().String()

	cfg := &container.Config{
		Image:           s.opts.Image,
		Cmd:             []string{s.opts.Python, "-c", code},
		Env:             []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1", "HOME=/tmp"},
		User:            containerUser,
		WorkingDir:      "/tmp",
		NetworkDisabled: true,
		Labels: map[string]string{
			"localagent.managed": "true",
		},
	}

	hostCfg := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		Tmpfs: map[string]string{
			"/tmp": "rw,noexec,nosuid,size=64m",
		},
		Resources: container.Resources{
			Memory:    s.opts.MemoryMB * 1024 * 1024,
			NanoCPUs:  int64(s.opts.CPUs * 1e9),
			PidsLimit: ptr(pidsLimit),
		},
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
	}

	resp, err := s.cli.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	if client.IsErrNotFound(err) {
		s.logger.Info("pulling sandbox image", "image", s.opts.Image)
		if pullErr := s.pull(ctx); pullErr != nil {
			return domain.ExecResult{}, pullErr
		}
		resp, err = s.cli.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	}
	if err != nil {
		return domain.ExecResult{}, fmt.Errorf("failed to create container: %w", err)
	}
	defer s.remove(resp.ID)

	start := time.Now()
	if err := s.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return domain.ExecResult{}, fmt.Errorf("failed to start container: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	result := domain.ExecResult{}
	statusCh, errCh := s.cli.ContainerWait(waitCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case st := <-statusCh:
		result.ExitCode = int(st.StatusCode)
		if st.Error != nil && st.Error.Message != "" {
			result.Stderr = st.Error.Message
		}
	case err := <-errCh:
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			result.TimedOut = true
			result.Duration = s.opts.Timeout
			return result, nil
		}
		return domain.ExecResult{}, fmt.Errorf("failed waiting for container: %w", err)
	}
	result.Duration = time.Since(start)

	stdout, stderr, err := s.logs(ctx, resp.ID)
	if err != nil {
		return domain.ExecResult{}, err
	}
	result.Stdout = stdout
	if stderr != "" {
		result.Stderr = stderr
	}
	return result, nil
}

func (s *Sandbox) pull(ctx context.Context) error {
	reader, err := s.cli.ImagePull(ctx, s.opts.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", s.opts.Image, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func (s *Sandbox) logs(ctx context.Context, id string) (string, string, error) {
	rc, err := s.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", fmt.Errorf("failed to read container logs: %w", err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil {
		return "", "", fmt.Errorf("failed to demux container logs: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}

// remove force-removes the container even if the caller's context is gone.
func (s *Sandbox) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		s.logger.Warn("failed to remove sandbox container", "id", id, "error", err)
	}
}

func ptr[T any](v T) *T { return &v }
