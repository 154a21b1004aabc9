package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidsum/internal/config"
	"vidsum/internal/jobs"
	"vidsum/internal/pipeline"
	"vidsum/internal/stage"
	"vidsum/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var jobID string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Process one video in the foreground",
		Long: "Fetch, transcribe, and summarize a video without the daemon. " +
			"Re-running with the same --job resumes from its saved artifacts.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := pipeline.NewJob(args[0], userID, jobID)
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				logger, err := ctx.logger(cfg)
				if err != nil {
					return err
				}
				if err := recordForegroundJob(cmd.Context(), store, job); err != nil {
					return err
				}
				runner, err := ctx.newRunner(cfg, logger, store, nil)
				if err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				stopBeat := workflow.HeartbeatFromConfig(cfg, store, logger).Track(runCtx, job.ID)
				outcome, err := runner.Run(runCtx, job)
				stopBeat()
				if err != nil {
					if errors.Is(err, pipeline.ErrCanceled) {
						fmt.Fprintf(cmd.ErrOrStderr(), "Interrupted; resume with: vidsum run --job %s %s\n", job.ID, job.SourceURL)
					}
					return err
				}
				if outcome.Result == nil {
					return fmt.Errorf("job %s ended in %s without a result", job.ID, outcome.State)
				}
				if jsonOutput {
					return writeJSON(cmd, outcome.Result)
				}
				printResult(cmd.OutOrStdout(), outcome.Result, outcome.ResultPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", defaultUserID(), "User the job belongs to")
	cmd.Flags().StringVar(&jobID, "job", "", "Job identifier (generated when omitted)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result artifact as JSON")
	return cmd
}

// recordForegroundJob registers job in the store and marks it in flight so
// a running daemon does not claim it. The caller keeps the heartbeat fresh
// for as long as the run lasts. An existing record for the same
// submission is reused, which lets a failed or interrupted run resume.
func recordForegroundJob(ctx context.Context, store *jobs.Store, job pipeline.Job) error {
	_, err := store.Submit(ctx, jobs.Submission{ID: job.ID, UserID: job.UserID, SourceURL: job.SourceURL})
	switch {
	case err == nil:
	case errors.Is(err, jobs.ErrDuplicate):
		existing, getErr := store.Get(ctx, job.ID)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return err
		}
		if existing.UserID != job.UserID || existing.SourceURL != job.SourceURL {
			return fmt.Errorf("job %s already exists for %s (user %s)", job.ID, existing.SourceURL, existing.UserID)
		}
		if existing.Status.Working() {
			return fmt.Errorf("job %s is already %s", job.ID, existing.Status)
		}
	default:
		return err
	}
	return store.SetStatus(ctx, job.ID, jobs.Update{
		Status: jobs.StatusFetching,
		Stage:  string(stage.Fetching),
	})
}
