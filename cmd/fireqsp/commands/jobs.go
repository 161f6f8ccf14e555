package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anuraag-saini/fireqsp-share-sub000/logger"
	"github.com/anuraag-saini/fireqsp-share-sub000/pipeline"
)

// JobsCmd manages extraction jobs from the command line.
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage extraction jobs",
	Long: `Inspect and manage extraction jobs.

Job management commands:
  fireqsp jobs ls --owner <id>  # List an owner's jobs
  fireqsp jobs show <job-id>    # Show job details
  fireqsp jobs cancel <job-id>  # Cancel a queued or running job`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// JobsLsCmd lists an owner's jobs.
var JobsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List extraction jobs",
	Long: `List an owner's extraction jobs, newest first.

Examples:
  fireqsp jobs ls --owner acme             # List acme's jobs
  fireqsp jobs ls --owner acme --limit 50  # Show up to 50 jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")
		if owner == "" {
			return fmt.Errorf("--owner is required")
		}
		return runJobsLs(owner, limit)
	},
}

// JobsShowCmd shows the full state of one job.
var JobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show status of an extraction job",
	Long: `Display detailed status for an extraction job:
- Current status and phase
- File progress and per-file failures
- Interactions found and the linked extraction
- Timestamps (created, started, completed)

Example:
  fireqsp jobs show 4f7c2a18-...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsShow(args[0])
	},
}

// JobsCancelCmd cancels a job.
var JobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued or running extraction job",
	Long: `Cancel a queued or running extraction job.

A running job stops at its next cancellation check: before the next file,
batch, or retried chunk. Completed, partial, and failed jobs cannot be
cancelled.

Example:
  fireqsp jobs cancel 4f7c2a18-...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsCancel(args[0])
	},
}

func init() {
	JobsLsCmd.Flags().String("owner", "", "Owner whose jobs to list")
	JobsLsCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")

	JobsCmd.AddCommand(JobsLsCmd)
	JobsCmd.AddCommand(JobsShowCmd)
	JobsCmd.AddCommand(JobsCancelCmd)
}

func runJobsLs(owner string, limit int) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	store := pipeline.NewStore(database)
	jobs, err := store.ListJobsByOwner(owner, limit)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Printf("No jobs found for owner %s\n", owner)
		return nil
	}

	fmt.Printf("%-38s %-12s %-12s %-13s %s\n", "JOB ID", "STATUS", "FILES", "INTERACTIONS", "CREATED")
	fmt.Printf("%-38s %-12s %-12s %-13s %s\n", "------", "------", "-----", "------------", "-------")

	for _, job := range jobs {
		files := fmt.Sprintf("%d/%d", job.FilesProcessed, job.TotalFiles)
		fmt.Printf("%-38s %-12s %-12s %-13d %s\n",
			truncate(job.ID, 38),
			job.Status,
			files,
			job.InteractionsFound,
			job.CreatedAt.Format("2006-01-02 15:04"))
	}

	fmt.Printf("\nTotal: %d job(s)\n", len(jobs))
	return nil
}

func runJobsShow(jobID string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	store := pipeline.NewStore(database)
	job, err := store.GetJob(jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	fmt.Printf("Job ID: %s\n", job.ID)
	fmt.Printf("  Owner: %s\n", job.OwnerID)
	fmt.Printf("  Status: %s\n", job.Status)
	if job.Phase != "" {
		fmt.Printf("  Phase: %s\n", job.Phase)
	}
	if job.CurrentFile != "" {
		fmt.Printf("  Current file: %s\n", job.CurrentFile)
	}
	fmt.Printf("\n")

	fmt.Printf("Files: %d/%d processed (%d ok, %d failed)\n",
		job.FilesProcessed, job.TotalFiles, job.FilesSuccessful, job.FilesFailed)
	for _, name := range job.FailedFiles {
		fmt.Printf("  failed: %s\n", name)
	}
	fmt.Printf("Interactions found: %d\n", job.InteractionsFound)
	if job.ExtractionID != "" {
		fmt.Printf("Extraction: %s\n", job.ExtractionID)
	}
	if job.Error != "" {
		fmt.Printf("Error: %s\n", job.Error)
	}
	fmt.Printf("\n")

	fmt.Printf("Created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
	if job.StartedAt != nil {
		fmt.Printf("Started: %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if job.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", job.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}

func runJobsCancel(jobID string) error {
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	manager := pipeline.NewManager(pipeline.NewStore(database), &pipeline.StaticPlans{}, logger.Logger)
	if err := manager.CancelJob(jobID); err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	fmt.Printf("Job %s cancelled\n", jobID)
	return nil
}
