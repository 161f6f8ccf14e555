package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/anuraag-saini/fireqsp-share-sub000/config"
	"github.com/anuraag-saini/fireqsp-share-sub000/logger"
	"github.com/anuraag-saini/fireqsp-share-sub000/pipeline"
)

// RunCmd runs an extraction over local files without the server.
var RunCmd = &cobra.Command{
	Use:   "run <file>...",
	Short: "Run an extraction job over local files",
	Long: `Run an extraction job over local files, end to end, in the
foreground: the files are uploaded to the configured object storage, a job
is created, and the pipeline processes it to a terminal status.

Example:
  fireqsp run --owner acme paper1.txt paper2.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		if owner == "" {
			return fmt.Errorf("--owner is required")
		}
		return runRun(owner, args)
	},
}

func init() {
	RunCmd.Flags().String("owner", "", "Owner to attribute the job to")
}

func runRun(owner string, files []string) error {
	cfg, _, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := openDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	rt, err := buildRuntime(cfg, database, logger.Logger)
	if err != nil {
		return err
	}

	job, err := rt.manager.CreateJob(owner, len(files))
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	ctx := context.Background()
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		path := pipeline.JobPrefix(owner, job.ID) + filepath.Base(file)
		if err := rt.objects.Upload(ctx, path, data); err != nil {
			return fmt.Errorf("failed to upload %s: %w", file, err)
		}
	}

	pterm.Info.Printf("Job %s created with %d file(s)", job.ID, len(files))
	spinner, _ := pterm.DefaultSpinner.Start("Extracting interactions...")

	result := rt.orch.RunJob(ctx, job.ID, owner, len(files))

	final, err := rt.manager.GetJob(job.ID)
	if err != nil {
		spinner.Fail("Job state unavailable")
		return fmt.Errorf("failed to reload job: %w", err)
	}

	if !result.Success {
		spinner.Fail(fmt.Sprintf("Job %s: %s", final.Status, result.Error))
		return fmt.Errorf("extraction failed: %s", result.Error)
	}
	spinner.Success(fmt.Sprintf("Job %s", final.Status))

	pterm.Println()
	pterm.Printf("  Files: %d/%d processed (%d failed)\n",
		final.FilesProcessed, final.TotalFiles, final.FilesFailed)
	pterm.Printf("  Interactions found: %d\n", final.InteractionsFound)
	if final.ExtractionID != "" {
		pterm.Printf("  Extraction: %s\n", final.ExtractionID)
	}
	for _, name := range final.FailedFiles {
		pterm.Warning.Printf("  failed: %s", name)
	}

	return nil
}
