// Package main provides the shellco binary entry point.
// ShellCompany is a workflow orchestration engine that turns plain-language
// directives into dependency-ordered task plans executed by a roster of
// shell agents, with artifact lineage tracking and a two-stage approval
// gate.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/BradleyMatera/ShellCompany-sub002/agent"
	"github.com/BradleyMatera/ShellCompany-sub002/approval"
	"github.com/BradleyMatera/ShellCompany-sub002/artifact"
	"github.com/BradleyMatera/ShellCompany-sub002/brief"
	"github.com/BradleyMatera/ShellCompany-sub002/config"
	"github.com/BradleyMatera/ShellCompany-sub002/event"
	"github.com/BradleyMatera/ShellCompany-sub002/orchestrator"
	directiveapi "github.com/BradleyMatera/ShellCompany-sub002/processor/directive-api"
	directiverunner "github.com/BradleyMatera/ShellCompany-sub002/processor/directive-runner"
	"github.com/BradleyMatera/ShellCompany-sub002/storage"
	"github.com/BradleyMatera/ShellCompany-sub002/workspace"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "shellco"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath    string
		workspaceRoot string
		natsURL       string
		httpAddr      string
		logLevel      string
	)

	cmd := &cobra.Command{
		Use:   "shellco",
		Short: "Workflow orchestration engine",
		Long: `ShellCompany turns plain-language directives into executable
workflows. Directives are clarified into briefs, planned into task DAGs,
and executed by a roster of shell agents in contained workspaces.

Every produced file is hashed and tracked with full lineage, and no
workflow completes without a manager review and an executive sign-off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, workspaceRoot, natsURL, httpAddr, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&workspaceRoot, "workspace-root", "", "Base directory for agent workspaces")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL (empty = in-memory only)")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP API listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Version command
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func run(configPath, workspaceRoot, natsURL, httpAddr, logLevel string) error {
	printBanner()

	// Configure logging
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Flag overrides take precedence over file config
	if workspaceRoot != "" {
		cfg.Workspace.Root = workspaceRoot
	}
	if natsURL != "" {
		cfg.NATS.URL = natsURL
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()

	// Agent workspaces
	workspaces, err := workspace.NewManager(cfg.Workspace.Root)
	if err != nil {
		return fmt.Errorf("create workspace manager: %w", err)
	}
	agents := agent.NewDefaultRegistry()

	// NATS is optional: without it the engine runs on the in-memory bus
	// and in-memory storage.
	var natsClient *natsclient.Client
	if cfg.NATS.URL != "" {
		natsClient, err = connectToNATS(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer natsClient.Close(ctx)

		if err := ensureStreams(ctx, natsClient, logger); err != nil {
			return err
		}
	}

	// Durable storage
	var repo storage.Repository
	if natsClient != nil {
		js, err := natsClient.JetStream()
		if err != nil {
			return fmt.Errorf("get jetstream: %w", err)
		}
		kvRepo, err := storage.NewKVRepository(ctx, js)
		if err != nil {
			return fmt.Errorf("create KV repository: %w", err)
		}
		repo = kvRepo
		logger.Info("Using JetStream KV storage")
	} else {
		repo = storage.NewMemory()
		logger.Warn("NATS not configured, using in-memory storage")
	}

	// Event bus, optionally forwarded to NATS subjects
	bus := event.NewBus()
	if natsClient != nil {
		forwarder := event.NewForwarder(natsClient, logger)
		unsubscribe := forwarder.Attach(bus)
		defer unsubscribe()
	}

	// Approval rules
	var rules *approval.Ruleset
	if cfg.Approval.RulesPath != "" {
		rules, err = approval.LoadRuleset(cfg.Approval.RulesPath)
		if err != nil {
			return fmt.Errorf("load approval rules: %w", err)
		}
		logger.Info("Loaded approval ruleset", "path", cfg.Approval.RulesPath)
	}

	// Build the orchestration engine
	engine, err := orchestrator.New(orchestrator.Config{
		TaskTimeout:     cfg.Engine.TaskTimeout,
		WorkflowTimeout: cfg.Engine.WorkflowTimeout,
	}, orchestrator.Deps{
		Briefs:     brief.NewManager(agents, nil, logger),
		Artifacts:  artifact.NewService(repo, workspaces, bus, nil, logger),
		Gate:       approval.NewGate(rules, repo, bus, nil, logger),
		Repo:       repo,
		Bus:        bus,
		Agents:     agents,
		Workspaces: workspaces,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	engine.Start(signalCtx)
	defer engine.Stop()
	orchestrator.InitGlobal(engine)

	slog.Info("ShellCompany ready",
		"version", Version,
		"workspace_root", cfg.Workspace.Root,
		"agents", agents.Names())

	// Wire processor components
	deps := component.Dependencies{
		NATSClient: natsClient,
		Logger:     logger,
	}

	apiComponent, err := directiveapi.NewComponent(json.RawMessage("{}"), deps)
	if err != nil {
		return fmt.Errorf("create directive-api: %w", err)
	}
	api := apiComponent.(*directiveapi.Component)
	if err := api.Initialize(); err != nil {
		return fmt.Errorf("initialize directive-api: %w", err)
	}
	if err := api.Start(signalCtx); err != nil {
		return fmt.Errorf("start directive-api: %w", err)
	}
	defer func() { _ = api.Stop(5 * time.Second) }()

	if natsClient != nil {
		runnerComponent, err := directiverunner.NewComponent(json.RawMessage("{}"), deps)
		if err != nil {
			return fmt.Errorf("create directive-runner: %w", err)
		}
		runner := runnerComponent.(*directiverunner.Component)
		if err := runner.Initialize(); err != nil {
			return fmt.Errorf("initialize directive-runner: %w", err)
		}
		if err := runner.Start(signalCtx); err != nil {
			return fmt.Errorf("start directive-runner: %w", err)
		}
		defer func() { _ = runner.Stop(5 * time.Second) }()
	}

	// HTTP API
	mux := http.NewServeMux()
	api.RegisterHTTPHandlers("/directive-api/", mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Block until shutdown signal or server failure
	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error stopping HTTP server", "error", err)
	}

	slog.Info("ShellCompany shutdown complete")
	return nil
}

func printBanner() {
	fmt.Println("╔═══════════════════════════════════════════════╗")
	fmt.Println("║           ShellCompany v" + Version + "                ║")
	fmt.Println("║      Workflow Orchestration Engine            ║")
	fmt.Println("╚═══════════════════════════════════════════════╝")
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		fileCfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg.Merge(fileCfg)
	}
	return cfg, nil
}

func connectToNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	natsURL := cfg.NATS.URL

	// Environment variable override takes precedence
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		natsURL = envURL
	}

	logger.Info("Connecting to NATS", "url", natsURL)

	client, err := natsclient.NewClient(natsURL,
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, natsURL)
	}

	logger.Info("Connected to NATS", "url", natsURL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

// ensureStreams creates the COMPANY stream used for workflow triggers,
// results, and forwarded engine events.
func ensureStreams(ctx context.Context, natsClient *natsclient.Client, logger *slog.Logger) error {
	js, err := natsClient.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name: "COMPANY",
		Subjects: []string{
			"company.trigger.>",
			"company.result.>",
			"company.events.>",
		},
		MaxAge:   24 * time.Hour,
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	})
	if err != nil {
		return fmt.Errorf("ensure COMPANY stream: %w", err)
	}

	logger.Debug("JetStream streams ready")
	return nil
}
