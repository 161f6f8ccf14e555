package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anuraag-saini/fireqsp-share-sub000/cmd/fireqsp/commands"
	"github.com/anuraag-saini/fireqsp-share-sub000/logger"
)

var rootCmd = &cobra.Command{
	Use:   "fireqsp",
	Short: "FireQSP - biomedical interaction extraction pipeline",
	Long: `FireQSP - AI document extraction for biomedical interaction networks.

FireQSP ingests research documents, extracts structured molecular and
cellular interaction records with an AI collaborator, and tracks every
extraction as a durable, resumable job.

Available commands:
  serve  - Start the API server and job pipeline
  run    - Run an extraction over local files in the foreground
  jobs   - Inspect and manage extraction jobs
  status - Show pipeline and host resource usage

Examples:
  fireqsp serve                    # Start the server on the configured port
  fireqsp run --owner acme a.txt   # Extract interactions from a local file
  fireqsp jobs ls --owner acme     # List an owner's jobs
  fireqsp jobs cancel <id>         # Cancel a queued or running job
  fireqsp status                   # Show queue depth and memory usage`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Serve reinitializes with the configured output format; for
		// everything else console output is fine.
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.StatusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
