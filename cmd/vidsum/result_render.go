package main

import (
	"fmt"
	"io"
	"time"

	"vidsum/internal/pipeline"
)

func printResult(w io.Writer, result *pipeline.Result, path string) {
	fmt.Fprintf(w, "Video:  %s\n", result.Video)
	if path != "" {
		fmt.Fprintf(w, "Result: %s\n", path)
	}
	if len(result.Scenes) == 0 {
		fmt.Fprintln(w, "No spoken content detected.")
		return
	}
	rows := make([][]string, 0, len(result.Scenes))
	for _, scene := range result.Scenes {
		rows = append(rows, []string{
			scene.ID,
			formatClock(scene.Start),
			formatClock(scene.End),
			scene.Summary,
		})
	}
	fmt.Fprintln(w, renderTable(w,
		[]string{"Scene", "Start", "End", "Summary"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
	))
}

// formatClock renders d as m:ss, or h:mm:ss past the hour.
func formatClock(d time.Duration) string {
	total := int(d / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
