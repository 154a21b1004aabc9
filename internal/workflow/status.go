package workflow

import (
	"context"
	"sort"
	"time"

	"vidsum/internal/jobs"
	"vidsum/internal/logging"
	"vidsum/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool           `json:"running"`
	LastError  string         `json:"lastError,omitempty"`
	LastJob    string         `json:"lastJob,omitempty"`
	NextJob    string         `json:"nextJob,omitempty"`
	ActiveJobs []string       `json:"activeJobs"`
	JobStats   jobs.Stats     `json:"jobStats"`
	Health     []stage.Health `json:"health"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, LastJob: m.lastJob}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	summary.ActiveJobs = make([]string, 0, len(m.active))
	for id := range m.active {
		summary.ActiveJobs = append(summary.ActiveJobs, id)
	}
	checkers := append([]stage.Checker(nil), m.checkers...)
	m.mu.RUnlock()
	sort.Strings(summary.ActiveJobs)

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
	}
	summary.JobStats = stats

	next, err := m.store.NextPending(ctx)
	if err != nil {
		m.logger.Warn("failed to peek pending queue", logging.Error(err))
	} else if next != nil {
		summary.NextJob = next.ID
	}

	summary.Health = make([]stage.Health, 0, len(checkers))
	for _, checker := range checkers {
		summary.Health = append(summary.Health, checker.HealthCheck(ctx))
	}
	return summary
}

// Ready reports whether every registered capability is healthy.
func (s StatusSummary) Ready() bool {
	for _, h := range s.Health {
		if !h.Ready {
			return false
		}
	}
	return true
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(id string) {
	m.mu.Lock()
	m.lastJob = id
	m.mu.Unlock()
}

func (m *Manager) trackActive(id string, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if running {
		m.active[id] = time.Now()
		return
	}
	delete(m.active, id)
}
