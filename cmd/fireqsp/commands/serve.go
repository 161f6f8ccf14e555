package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anuraag-saini/fireqsp-share-sub000/config"
	"github.com/anuraag-saini/fireqsp-share-sub000/logger"
	"github.com/anuraag-saini/fireqsp-share-sub000/pipeline"
	"github.com/anuraag-saini/fireqsp-share-sub000/server"
)

// ServeCmd starts the API server and job pipeline.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the FireQSP API server",
	Long: `Start the FireQSP API server in foreground mode.

The server will:
- Serve the job and extraction API on the configured port
- Run extraction jobs asynchronously as they are started
- Sweep stale jobs and clean up old terminal jobs
- Reload tuning parameters when the config file changes
- Run until interrupted (Ctrl+C) with graceful shutdown

Example:
  fireqsp serve               # Use the configured port
  fireqsp serve --port 9000   # Override the port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		return runServe(port)
	},
}

func init() {
	ServeCmd.Flags().Int("port", 0, "Port to listen on (overrides config)")
}

func runServe(portOverride int) error {
	cfg, cfgPath, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Initialize(cfg.Logging.JSON); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Logger

	database, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	rt, err := buildRuntime(cfg, database, log)
	if err != nil {
		return err
	}

	// Jobs orphaned by a previous crash fail now rather than on the next run.
	staleWindow := time.Duration(cfg.Pipeline.StaleJobHours) * time.Hour
	if swept, err := rt.manager.SweepStaleJobs(staleWindow); err != nil {
		log.Warnw("Startup stale job sweep failed", "error", err)
	} else if swept > 0 {
		log.Infow("Swept stale jobs from previous run", "count", swept)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cleanupLoop(ctx, rt.store, cfg.Pipeline.CleanupAfterDays, log)

	if cfgPath != "" {
		watcher, err := config.NewWatcher(cfgPath, log)
		if err != nil {
			log.Warnw("Config watching disabled", "error", err)
		} else {
			watcher.OnReload(func(next *config.Config) error {
				rt.extractor.SetBatchSize(next.Pipeline.BatchSize)
				rt.extractor.SetFallbackThreshold(next.Pipeline.FallbackThreshold)
				rt.orch.SetStaleWindow(time.Duration(next.Pipeline.StaleJobHours) * time.Hour)
				return nil
			})
			watcher.Start()
			defer watcher.Close()
		}
	}

	srv := server.New(rt.manager, rt.orch, rt.extractions, rt.objects, cfg.Server.AllowedOrigins, log)

	port := cfg.Server.Port
	if portOverride > 0 {
		port = portOverride
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(port)
	}()

	fmt.Printf("FireQSP server started\n")
	fmt.Printf("  Port: %d\n", port)
	fmt.Printf("  Database: %s\n", cfg.Database.Path)
	fmt.Printf("  Storage: %s\n", cfg.Storage.Provider)
	fmt.Printf("  Model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("\nPress Ctrl+C for graceful shutdown\n\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server exited: %w", err)
	case <-sigChan:
	}

	fmt.Printf("\nShutting down...\n")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("Shutdown did not complete cleanly", "error", err)
	}

	fmt.Printf("FireQSP server stopped\n")
	return nil
}

// cleanupLoop deletes terminal jobs past the retention window, once a day.
func cleanupLoop(ctx context.Context, store *pipeline.Store, afterDays int, log *zap.SugaredLogger) {
	if afterDays <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupOldJobs(time.Duration(afterDays) * 24 * time.Hour)
			if err != nil {
				log.Warnw("Job cleanup failed", "error", err)
			} else if removed > 0 {
				log.Infow("Cleaned up old jobs", "count", removed)
			}
		}
	}
}
