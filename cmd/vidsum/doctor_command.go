package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidsum/internal/config"
	"vidsum/internal/deps"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that external tools and backends are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.PipelineRequirements(cfg))
			if jsonOutput {
				return writeJSON(cmd, statuses)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				detail := status.Path
				if !status.Available {
					detail = status.Detail
				}
				rows = append(rows, []string{status.Name, yesNo(status.Available), yesNo(!status.Optional), detail})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Tool", "Available", "Required", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "Transcription backend: %s\n", cfg.Transcription.Backend)
			fmt.Fprintf(out, "Summary backend:       %s (key set: %s)\n", cfg.Summary.Backend, yesNo(summaryKeySet(cfg)))

			if !deps.Satisfied(statuses) {
				return fmt.Errorf("required tools are missing")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	return cmd
}

func summaryKeySet(cfg *config.Config) bool {
	if cfg.Summary.Backend == config.BackendNone {
		return false
	}
	return cfg.Summary.APIKey != ""
}
