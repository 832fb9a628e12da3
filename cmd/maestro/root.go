package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maestrohq/maestro/pkg/budget"
	"github.com/maestrohq/maestro/pkg/config"
	"github.com/maestrohq/maestro/pkg/version"
	"github.com/maestrohq/maestro/pkg/workspace"
)

// Exit codes surfaced to callers. Anything else maps to 1.
const (
	exitOK        = 0
	exitConfig    = 2
	exitBudget    = 3
	exitWorkspace = 4
)

// exitError carries a process exit code alongside the underlying error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// codedErr wraps err with an exit code. Nil errors pass through.
func codedErr(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var configDir string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "maestro",
		Short:         "Multi-agent marketing orchestrator",
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env before logging setup so LOG_LEVEL/LOG_FORMAT from
			// the file take effect.
			envPath := filepath.Join(configDir, ".env")
			if err := godotenv.Load(envPath); err == nil {
				slog.Debug("Loaded environment", "path", envPath)
			}
			setupLogging()
		},
	}
	root.PersistentFlags().StringVar(&configDir, "config-dir",
		getEnv("MAESTRO_CONFIG", "./config"),
		"Path to configuration directory")

	root.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newScheduleCmd(),
		newEventsCmd(),
		newHealthCmd(),
		newVersionCmd(),
	)
	return root
}

// setupLogging configures the default slog handler from LOG_LEVEL and
// LOG_FORMAT (text or json).
func setupLogging() {
	level := slog.LevelInfo
	switch getEnv(config.EnvLogLevel, "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if getEnv(config.EnvLogFormat, "text") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// loadConfig initializes configuration from the config directory.
func loadConfig(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return nil, codedErr(exitConfig, fmt.Errorf("initializing configuration: %w", err))
	}
	return cfg, nil
}

// openWorkspace opens the filesystem workspace rooted at the configured
// directory.
func openWorkspace(cfg *config.Config) (workspace.Workspace, error) {
	ws, err := workspace.NewFS(cfg.System.WorkspaceDir)
	if err != nil {
		return nil, codedErr(exitWorkspace, fmt.Errorf("opening workspace: %w", err))
	}
	return ws, nil
}

// ledgerDir is where cost entries and flushed reports live, relative to
// the workspace root.
const ledgerDir = "costs"

// buildTracker creates the cost tracker backed by the workspace ledger
// and replays persisted entries so budget state survives restarts.
func buildTracker(cfg *config.Config, ws workspace.Workspace) *budget.Tracker {
	ledger := budget.NewLedger(ws, ledgerDir)
	tracker := budget.NewTracker(cfg.Budget, budget.WithLedger(ledger))

	entries, err := ledger.Load()
	if err != nil {
		slog.Warn("Could not load cost ledger, starting from zero", "error", err)
	}
	if len(entries) > 0 {
		tracker.Restore(entries)
		state := tracker.State()
		slog.Info("Restored cost ledger",
			"entries", len(entries),
			"spent_usd", state.SpentUSD,
			"level", state.Level)
	}
	return tracker
}
