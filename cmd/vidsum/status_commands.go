package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidsum/internal/config"
	"vidsum/internal/jobs"
	"vidsum/internal/pipeline"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status [job-id]",
		Short: "List jobs or describe one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					job, err := store.Get(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if job == nil {
						return fmt.Errorf("job %s not found", args[0])
					}
					if jsonOutput {
						return writeJSON(cmd, job)
					}
					printJobDetail(out, job)
					return nil
				}

				statuses, err := parseStatusFilters(statusFilters)
				if err != nil {
					return err
				}
				list, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					if list == nil {
						list = []*jobs.Job{}
					}
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs recorded")
					return nil
				}
				printJobTable(out, list)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Only list jobs with these statuses")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print the result of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *jobs.Store) error {
				job, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				if job.Status != jobs.StatusCompleted && job.Status != jobs.StatusCompletedEmpty {
					return fmt.Errorf("job %s is %s; no result yet", job.ID, job.Status)
				}
				result, err := pipeline.LoadResult(job.ResultPath)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				printResult(cmd.OutOrStdout(), result, job.ResultPath)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result artifact as JSON")
	return cmd
}

func parseStatusFilters(values []string) ([]jobs.Status, error) {
	statuses := make([]jobs.Status, 0, len(values))
	for _, value := range values {
		status, ok := jobs.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func printJobTable(w io.Writer, list []*jobs.Job) {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.ID,
			job.UserID,
			string(job.Status),
			strconv.Itoa(job.SceneCount),
			formatTimestamp(job.UpdatedAt),
			job.SourceURL,
		})
	}
	fmt.Fprintln(w, renderTable(w,
		[]string{"Job", "User", "Status", "Scenes", "Updated", "Source"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

func printJobDetail(w io.Writer, job *jobs.Job) {
	lines := [][2]string{
		{"Job", job.ID},
		{"User", job.UserID},
		{"Source", job.SourceURL},
		{"Status", string(job.Status)},
		{"Stage", job.Stage},
		{"Error", job.ErrorMessage},
		{"Result", job.ResultPath},
		{"Scenes", strconv.Itoa(job.SceneCount)},
		{"Created", formatTimestamp(job.CreatedAt)},
		{"Updated", formatTimestamp(job.UpdatedAt)},
	}
	if job.LastHeartbeat != nil {
		lines = append(lines, [2]string{"Heartbeat", formatTimestamp(*job.LastHeartbeat)})
	}
	lines = append(lines, [2]string{"Finished", yesNo(job.Status.Terminal())})
	for _, line := range lines {
		if strings.TrimSpace(line[1]) == "" {
			continue
		}
		fmt.Fprintf(w, "%-10s %s\n", line[0]+":", line[1])
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
