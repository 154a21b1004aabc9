package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const jobColumns = "id, user_id, source_url, status, stage, error_message, result_path, scene_count, created_at, updated_at, last_heartbeat"

// Submit records a new pending job. An empty ID is replaced with a random UUID.
func (s *Store) Submit(ctx context.Context, sub Submission) (*Job, error) {
	sub.ID = strings.TrimSpace(sub.ID)
	sub.UserID = strings.TrimSpace(sub.UserID)
	sub.SourceURL = strings.TrimSpace(sub.SourceURL)
	if sub.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalid)
	}
	if sub.SourceURL == "" {
		return nil, fmt.Errorf("%w: sourceUrl is required", ErrInvalid)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	timestamp := s.timestamp()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, user_id, source_url, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		sub.ID,
		sub.UserID,
		sub.SourceURL,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, sub.ID)
	}
	return s.Get(ctx, sub.ID)
}

// Get fetches a job by identifier. Unknown ids return (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// SetStatus applies a pipeline status transition. Working statuses refresh
// the heartbeat; pending and terminal statuses clear it. Terminal statuses
// overwrite the error, result path, and scene count so a retried job never
// carries stale outcome fields.
func (s *Store) SetStatus(ctx context.Context, id string, update Update) error {
	if _, ok := ParseStatus(string(update.Status)); !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalid, update.Status)
	}
	timestamp := s.timestamp()
	var heartbeat any
	if update.Status.Working() {
		heartbeat = timestamp
	}

	var (
		res sql.Result
		err error
	)
	if update.Status.Terminal() {
		res, err = s.execWithRetry(
			ctx,
			`UPDATE jobs
             SET status = ?, stage = ?, error_message = ?, result_path = ?, scene_count = ?,
                 updated_at = ?, last_heartbeat = NULL
             WHERE id = ?`,
			update.Status,
			nullableString(update.Stage),
			nullableString(update.Message),
			nullableString(update.ResultPath),
			update.SceneCount,
			timestamp,
			id,
		)
	} else {
		res, err = s.execWithRetry(
			ctx,
			`UPDATE jobs
             SET status = ?, stage = ?, error_message = NULL, updated_at = ?, last_heartbeat = ?
             WHERE id = ?`,
			update.Status,
			nullableString(update.Stage),
			timestamp,
			heartbeat,
			id,
		)
	}
	if err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return requireAffected(res, id)
}

// List returns jobs filtered by status set (or all jobs when no status is provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// NextPending returns the oldest pending job without claiming it.
func (s *Store) NextPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1`,
		StatusPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

// ClaimNext atomically moves the oldest pending job to fetching and stamps
// its heartbeat. Returns (nil, nil) when nothing is pending.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	var job *Job
	err := retryOnBusy(ctx, func() error {
		timestamp := s.timestamp()
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE jobs
             SET status = ?, stage = ?, error_message = NULL, updated_at = ?, last_heartbeat = ?
             WHERE id = (SELECT id FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1)
             RETURNING `+jobColumns,
			StatusFetching,
			string(StatusFetching),
			timestamp,
			timestamp,
			StatusPending,
		)
		claimed, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			job = nil
			return nil
		}
		if err != nil {
			return err
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Remove deletes a job record. Jobs in a working status are refused with
// ErrInFlight so a running pipeline never loses its status row. Working
// directories are left untouched.
func (s *Store) Remove(ctx context.Context, id string) error {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE id = ? AND status IN (?, ?, ?, ?)`,
		id,
		StatusPending,
		StatusCompleted,
		StatusCompletedEmpty,
		StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	if err := requireAffected(res, id); !errors.Is(err, ErrNotFound) {
		return err
	}
	job, err := s.Get(ctx, id)
	switch {
	case err != nil:
		return err
	case job == nil:
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	default:
		return fmt.Errorf("%w: %s is %s", ErrInFlight, id, job.Status)
	}
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job          Job
		status       string
		stage        sql.NullString
		errorMessage sql.NullString
		resultPath   sql.NullString
		createdRaw   string
		updatedRaw   string
		heartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.UserID,
		&job.SourceURL,
		&status,
		&stage,
		&errorMessage,
		&resultPath,
		&job.SceneCount,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.Stage = stage.String
	job.ErrorMessage = errorMessage.String
	job.ResultPath = resultPath.String
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
