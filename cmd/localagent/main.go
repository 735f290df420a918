package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/manthysbr/localagent/internal/adapters/docker"
	"github.com/manthysbr/localagent/internal/adapters/duckdb"
	"github.com/manthysbr/localagent/internal/adapters/providers"
	"github.com/manthysbr/localagent/internal/adapters/sandbox"
	"github.com/manthysbr/localagent/internal/cli"
	appconfig "github.com/manthysbr/localagent/internal/config"
	"github.com/manthysbr/localagent/internal/core/domain"
	"github.com/manthysbr/localagent/internal/core/ports"
	"github.com/manthysbr/localagent/internal/core/services"
	"github.com/manthysbr/localagent/pkg/kernel"
)

type flags struct {
	configPath  string
	model       string
	temperature float64
	httpAddr    string
	headless    bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to a .toml, .yaml or .json config file (watched for changes)")
	flag.StringVar(&f.model, "model", "", "Ollama model name, e.g. llama3:8b, qwen3:8b, deepseek-coder:6.7b")
	flag.Float64Var(&f.temperature, "temperature", -1, "sampling temperature in [0, 2]")
	flag.StringVar(&f.httpAddr, "http", "", "HTTP API listen address, e.g. :8000 (\"off\" disables it)")
	flag.BoolVar(&f.headless, "headless", false, "serve the HTTP API only, without the interactive prompt")
	flag.Parse()
	return f
}

// overrides turns explicitly set flags into config overrides so they win
// over file and environment values, including after a hot reload.
func (f flags) overrides() []appconfig.Override {
	var out []appconfig.Override
	if f.model != "" {
		model := f.model
		out = append(out, func(cfg *domain.AppConfig) { cfg.LLM.Model = model })
	}
	if f.temperature >= 0 {
		temp := f.temperature
		out = append(out, func(cfg *domain.AppConfig) { cfg.LLM.Temperature = temp })
	}
	if f.httpAddr != "" {
		addr := f.httpAddr
		if strings.EqualFold(addr, "off") {
			addr = ""
		}
		out = append(out, func(cfg *domain.AppConfig) { cfg.HTTP.Addr = addr })
	}
	return out
}

func main() {
	f := parseFlags()

	cfg, err := appconfig.Load(f.configPath, os.LookupEnv, f.overrides()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Log)
	logger.Info("starting local agent", "config", appconfig.Masked(cfg))

	if err := run(logger, f, cfg); err != nil {
		logger.Error("agent failed", "error", err)
		os.Exit(1)
	}
}

// newLogger writes to stderr so stdout stays reserved for the REPL.
func newLogger(c domain.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func run(logger *slog.Logger, f flags, cfg *domain.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmProvider, err := providers.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build llm provider: %w", err)
	}

	discovery := services.NewModelDiscovery(logger)
	if cfg.LLM.Provider == "ollama" {
		discovery.CheckModel(ctx, cfg.LLM.BaseURL, cfg.LLM.Model)
	}

	codeSandbox, closeSandbox := buildSandbox(ctx, logger, cfg.Sandbox)
	defer closeSandbox()

	toolRegistry := domain.NewToolRegistry()
	for _, tool := range []*domain.Tool{
		services.NewWebSearchTool(services.WebSearchOptions{
			Engine:     cfg.Search.Engine,
			Endpoint:   cfg.Search.Endpoint,
			MaxResults: cfg.Search.MaxResults,
			Timeout:    cfg.Search.Timeout.Std(),
			RatePerSec: cfg.Search.RatePerSec,
			UserAgent:  cfg.Search.UserAgent,
		}),
		services.NewCodeExecutionTool(codeSandbox),
		services.NewFileTool(cfg.Files.Root),
	} {
		if err := toolRegistry.Register(tool); err != nil {
			return fmt.Errorf("failed to register %s tool: %w", tool.Name, err)
		}
		logger.Info("registered tool", "name", tool.Name, "exec", tool.ExecutionType)
	}

	// Trace persistence is optional; the in-memory ring buffer always runs.
	var store ports.TraceStore
	var traceRepo services.TraceRepository
	if cfg.Trace.DBPath != "" {
		repo, err := duckdb.NewRepository(cfg.Trace.DBPath)
		if err != nil {
			return fmt.Errorf("failed to init trace store: %w", err)
		}
		defer repo.Close()
		store, traceRepo = repo, repo
		logger.Info("persisting traces", "path", cfg.Trace.DBPath)
	}
	tracer := services.NewTraceCollector(logger, traceRepo)

	agent, err := services.NewReActAgentService(logger, llmProvider, toolRegistry, tracer, services.AgentOptions{
		MaxIterations:  cfg.Agent.MaxIterations,
		MaxParseErrors: cfg.Agent.MaxParseErrors,
		Model:          providers.ModelOf(llmProvider),
	})
	if err != nil {
		return fmt.Errorf("failed to init agent: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	if f.configPath != "" {
		watcher := appconfig.NewWatcher(logger, f.configPath, os.LookupEnv, cfg, f.overrides()...)
		// Only the model backend is hot-swapped; tools and limits need a restart.
		watcher.OnChange(func(newCfg *domain.AppConfig) {
			newLLM, err := providers.Build(newCfg)
			if err != nil {
				logger.Error("failed to rebuild llm provider on config change", "error", err)
				return
			}
			if newCfg.LLM.Provider == "ollama" {
				discovery.CheckModel(gCtx, newCfg.LLM.BaseURL, newCfg.LLM.Model)
			}
			model := providers.ModelOf(newLLM)
			agent.UpdateProvider(newLLM, model)
			logger.Info("llm provider hot-reloaded", "provider", newCfg.LLM.Provider, "model", model)
		})
		g.Go(func() error {
			return watcher.Run(gCtx)
		})
	}

	if cfg.HTTP.Addr != "" {
		// Bind before the REPL starts so a busy port fails the process at once.
		httpServer, ln, err := newAPIServer(logger, cfg.HTTP, agent, tracer, store)
		if err != nil {
			return err
		}

		g.Go(func() error {
			logger.Info("starting api server", "addr", ln.Addr().String())
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api server failed: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("shutting down api server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	} else if f.headless {
		return fmt.Errorf("-headless requires the HTTP API to be enabled")
	}

	if !f.headless {
		repl, in := newREPL(agent, cfg)
		g.Go(func() error {
			defer in.Close()
			err := repl.Run(gCtx)
			// Leaving the REPL ends the process, API included.
			stop()
			return err
		})
	}

	return g.Wait()
}

// newAPIServer builds the HTTP API and binds its listener.
func newAPIServer(logger *slog.Logger, c domain.HTTPConfig, agent kernel.Agent, tracer kernel.TraceLister, store ports.TraceStore) (*http.Server, net.Listener, error) {
	apiServer, err := kernel.NewServer(logger, agent, tracer, store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init api server: %w", err)
	}
	apiHandler, err := apiServer.Handler()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build api handler: %w", err)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: c.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("api server listen on %s: %w", c.Addr, err)
	}
	return &http.Server{
		Handler:           corsHandler.Handler(apiHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}, ln, nil
}

// buildSandbox prefers the Docker sandbox and falls back to a local Python
// subprocess when the daemon is unreachable.
func buildSandbox(ctx context.Context, logger *slog.Logger, c domain.SandboxConfig) (ports.CodeSandbox, func()) {
	local := sandbox.NewLocal(c.Python, c.Timeout.Std())
	if c.Mode != "docker" {
		logger.Warn("python code runs unsandboxed on this host", "python", c.Python)
		return local, func() {}
	}

	sb, err := docker.NewSandbox(ctx, logger, docker.Options{
		Image:    c.Image,
		Python:   c.Python,
		Timeout:  c.Timeout.Std(),
		MemoryMB: c.MemoryMB,
		CPUs:     c.CPUs,
	})
	if err != nil {
		logger.Warn("docker unavailable, python code runs unsandboxed on this host", "error", err)
		return local, func() {}
	}
	return sb, func() {
		if err := sb.Close(); err != nil {
			logger.Warn("failed to close docker client", "error", err)
		}
	}
}

func newREPL(agent cli.Agent, cfg *domain.AppConfig) (*cli.REPL, cli.LineReader) {
	opts := cli.Options{Model: cfg.LLM.Model, Verbose: cfg.Agent.Verbose}

	var in cli.LineReader
	if term.IsTerminal(int(os.Stdin.Fd())) {
		history := ""
		if home, err := os.UserHomeDir(); err == nil {
			history = filepath.Join(home, ".localagent_history")
		}
		in = cli.NewLinerReader(history)
		opts.Styled = true
	} else {
		in = cli.NewScannerReader(os.Stdin, os.Stdout)
	}
	return cli.New(agent, in, os.Stdout, opts), in
}
