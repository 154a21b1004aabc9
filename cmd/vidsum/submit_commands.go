package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vidsum/internal/config"
	"vidsum/internal/jobs"
	"vidsum/internal/pipeline"
	"vidsum/internal/workdir"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var jobID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Queue a video for the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := pipeline.NewJob(args[0], userID, jobID)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				record, err := store.Submit(cmd.Context(), jobs.Submission{
					ID:        job.ID,
					UserID:    job.UserID,
					SourceURL: job.SourceURL,
				})
				if errors.Is(err, jobs.ErrDuplicate) {
					return fmt.Errorf("job %s already exists", job.ID)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, record)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued job %s for %s\n", record.ID, record.SourceURL)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", defaultUserID(), "User the job belongs to")
	cmd.Flags().StringVar(&jobID, "job", "", "Job identifier (generated when omitted)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the queued job as JSON")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Return a failed job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				record, err := store.Retry(cmd.Context(), args[0])
				switch {
				case errors.Is(err, jobs.ErrNotFound):
					return fmt.Errorf("job %s not found", args[0])
				case errors.Is(err, jobs.ErrNotRetryable):
					return fmt.Errorf("job %s has not failed; only failed jobs can be retried", args[0])
				case err != nil:
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s returned to %s\n", record.ID, record.Status)
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Delete a job record that is not in flight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				record, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				err = store.Remove(cmd.Context(), record.ID)
				switch {
				case errors.Is(err, jobs.ErrInFlight):
					return fmt.Errorf("job %s is %s; wait for it to finish before removing it", record.ID, record.Status)
				case err != nil:
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed job %s\n", record.ID)
				if !purge {
					return nil
				}
				dir := workdir.Dir(cfg.Paths.WorkDir, record.UserID, record.ID)
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("purge working directory: %w", err)
				}
				fmt.Fprintf(out, "Deleted %s\n", dir)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "Also delete the job's working directory and cached artifacts")
	return cmd
}
