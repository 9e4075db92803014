package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mcpfinder-go/internal/config"
	"mcpfinder-go/internal/logs"
	"mcpfinder-go/internal/server"
)

var (
	configFile string
	dataDir    string
	logLevel   string
	logToFile  bool
	syncMaxAge time.Duration

	version = "v0.1.0" // Injected by -ldflags during build
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "mcpfinder",
		Short:   "MCPfinder - Aggregated discovery and install helper for Model Context Protocol servers",
		Version: version,
		RunE:    runServe,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory path (default: $MCPFINDER_DATA_DIR or ~/.mcpfinder)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-to-file", false, "Enable logging to a rotating file under the data directory")
	rootCmd.PersistentFlags().DurationVar(&syncMaxAge, "sync-max-age", 0, "Staleness window before a sync is triggered (default: 15m)")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull all upstream registries once and report per-source counts",
		RunE:  runSync,
	}
	rootCmd.AddCommand(syncCmd)

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the local catalog from the command line",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSearch,
	}
	searchCmd.Flags().Int("limit", 10, "Maximum number of results (1-50)")
	rootCmd.AddCommand(searchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger and server
func setup() (*server.Server, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if dataDir != "" {
		cfg.DataDir = dataDir
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
		}
	}
	if syncMaxAge > 0 {
		cfg.SyncMaxAge = syncMaxAge
	}
	cfg.Logging.Level = logLevel
	cfg.Logging.EnableFile = logToFile

	logger, err := logs.SetupLogger(cfg.Logging, cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	return srv, logger, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe(_ *cobra.Command, _ []string) error {
	srv, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
		_ = logger.Sync()
	}()

	ctx, cancel := signalContext()
	defer cancel()

	logger.Info("Starting mcpfinder", zap.String("version", version), zap.String("log_level", logLevel))

	return srv.Run(ctx)
}

func runSync(_ *cobra.Command, _ []string) error {
	srv, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = srv.Close()
		_ = logger.Sync()
	}()

	ctx, cancel := signalContext()
	defer cancel()

	results := srv.SyncAll(ctx)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("%-10s error  %d servers  (%v)\n", r.Source, r.Count, r.Err)
			continue
		}
		fmt.Printf("%-10s ok     %d servers\n", r.Source, r.Count)
	}

	if failed == len(results) {
		return fmt.Errorf("all sources failed")
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	srv, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() {
		_ = srv.Close()
		_ = logger.Sync()
	}()

	ctx, cancel := signalContext()
	defer cancel()

	query := ""
	if len(args) > 0 {
		query = args[0]
	}
	limit, _ := cmd.Flags().GetInt("limit")

	results, err := srv.Search(ctx, query, limit)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
