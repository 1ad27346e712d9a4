// Package main implements the planning-agent CLI: a multi-agent
// planning orchestrator that drives external LLM CLI tools through a
// plan, review, revise and implement cycle.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/metjm/planning-agent/config"
	"github.com/metjm/planning-agent/paths"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath      string
		homeOverride    string
		resumeSessionID string
		internalMCP     bool
		planContentB64  string
		reviewPromptB64 string
		featureName     string
		objective       string
		workingDir      string
		maxIterations   uint32
	)

	rootCmd := &cobra.Command{
		Use:     "planning-agent",
		Short:   "Multi-agent planning orchestrator",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Long: `planning-agent drives external LLM CLI agents through a
plan, review, revise and implement cycle, persisting every transition
as an event log so a session can be resumed or inspected at any time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if homeOverride != "" {
				paths.WithHomeOverride(homeOverride)
			}

			if internalMCP {
				return runInternalMCPServer(planContentB64, reviewPromptB64)
			}

			return runPlan(cmd.Context(), configPath, featureName, objective, workingDir, maxIterations, resumeSessionID)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a workflow config file")
	rootCmd.Flags().StringVar(&homeOverride, "home", "", "override the planning-agent home directory")
	rootCmd.Flags().StringVar(&resumeSessionID, "resume-session", "", "resume an existing session by id instead of starting a new one")
	rootCmd.Flags().BoolVar(&internalMCP, "internal-mcp-server", false, "run as the internal MCP review server (used by spawned agents)")
	rootCmd.Flags().StringVar(&planContentB64, "plan-content-b64", "", "base64-encoded plan content (internal-mcp-server mode)")
	rootCmd.Flags().StringVar(&reviewPromptB64, "review-prompt-b64", "", "base64-encoded review prompt (internal-mcp-server mode)")
	rootCmd.Flags().StringVar(&featureName, "feature", "", "name of the feature to plan (new session only)")
	rootCmd.Flags().StringVar(&objective, "objective", "", "objective statement for the plan (new session only)")
	rootCmd.Flags().StringVar(&workingDir, "working-dir", ".", "working directory the agents operate in")
	rootCmd.Flags().Uint32Var(&maxIterations, "max-iterations", 3, "maximum planning review iterations before awaiting a decision")

	rootCmd.AddCommand(newDaemonCommand())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func newDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the session registry daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			app := NewApp(nil, logger)
			return app.RunDaemon(cmd.Context())
		},
	}
}

func runPlan(ctx context.Context, configPath, featureName, objective, workingDir string, maxIterations uint32, resumeSessionID string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	loader := config.NewLoader(logger)
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = loader.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if resumeSessionID == "" && featureName == "" {
		return fmt.Errorf("either --feature (new session) or --resume-session (existing session) is required")
	}

	app := NewApp(cfg, logger)
	return app.RunPlan(ctx, featureName, objective, workingDir, maxIterations, resumeSessionID)
}

func runInternalMCPServer(planContentB64, reviewPromptB64 string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	app := NewApp(nil, logger)
	return app.RunInternalMCPServer(planContentB64, reviewPromptB64)
}
