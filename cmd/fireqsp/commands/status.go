package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/anuraag-saini/fireqsp-share-sub000/logger"
	"github.com/anuraag-saini/fireqsp-share-sub000/pipeline"
)

// StatusCmd shows pipeline and host resource usage.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline and host resource usage",
	Long: `Show the pipeline queue depth and host memory usage.

Example:
  fireqsp status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

func runStatus() error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	manager := pipeline.NewManager(pipeline.NewStore(database), &pipeline.StaticPlans{}, logger.Logger)
	metrics := manager.GetSystemMetrics()

	pterm.DefaultHeader.Printf("FireQSP Status")
	pterm.Println()

	pterm.Info.Printf("Jobs:")
	pterm.Printf("  Queued: %d\n", metrics.JobsQueued)
	pterm.Printf("  Processing: %d\n", metrics.JobsProcessing)
	pterm.Println()

	if metrics.MemoryTotalGB > 0 {
		pterm.Info.Printf("Memory:")
		pterm.Printf("  Used: %.1f GB of %.1f GB (%.0f%%)\n",
			metrics.MemoryUsedGB, metrics.MemoryTotalGB, metrics.MemoryPercent)
	} else {
		pterm.Warning.Println("Memory statistics unavailable")
	}

	return nil
}
