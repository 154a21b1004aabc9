package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vidsum/internal/jobs"
)

// jobStatusCollector reads job counts from the store at scrape time.
type jobStatusCollector struct {
	source StatsSource
	jobs   *prometheus.Desc
}

func newJobStatusCollector(source StatsSource) *jobStatusCollector {
	return &jobStatusCollector{
		source: source,
		jobs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "jobs"),
			"Current number of jobs per status.",
			[]string{"status"}, nil,
		),
	}
}

func (c *jobStatusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobs
}

func (c *jobStatusCollector) Collect(ch chan<- prometheus.Metric) {
	stats := jobs.Stats{}
	if c.source != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if current, err := c.source.Stats(ctx); err == nil {
			stats = current
		}
	}
	for _, status := range jobs.AllStatuses() {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue, float64(stats[status]), string(status))
	}
}
