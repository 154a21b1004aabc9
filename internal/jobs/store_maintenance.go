package jobs

import (
	"context"
	"fmt"
	"time"
)

// Heartbeat refreshes the liveness timestamp of an in-flight job.
func (s *Store) Heartbeat(ctx context.Context, id string) error {
	timestamp := s.timestamp()
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		timestamp,
		timestamp,
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns in-flight jobs whose heartbeat is older than cutoff to
// pending so the daemon picks them up again. The working directory keeps the
// artifacts already produced, so the rerun resumes where it stopped.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	args := []any{StatusPending, s.timestamp()}
	for _, status := range workingStatuses {
		args = append(args, status)
	}
	args = append(args, formatTime(cutoff))
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, stage = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(workingStatuses))+`)
           AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// Retry moves a failed job back to pending.
func (s *Store) Retry(ctx context.Context, id string) (*Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRetryable, id, job.Status)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, stage = NULL, error_message = NULL, result_path = NULL, scene_count = 0,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPending,
		s.timestamp(),
		id,
		StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("retry job: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return nil, fmt.Errorf("%w: %s changed state concurrently", ErrNotRetryable, id)
	}
	return s.Get(ctx, id)
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(Stats)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}
