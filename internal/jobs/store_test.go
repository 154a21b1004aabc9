package jobs_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidsum/internal/jobs"
	"vidsum/internal/testsupport"
)

func TestSubmitAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.Submit(ctx, jobs.Submission{ID: "job-1", UserID: "alice", SourceURL: "https://www.youtube.com/watch?v=abc"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if job.Status != jobs.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %+v", job)
	}

	fetched, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil || fetched.UserID != "alice" || fetched.SourceURL != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil job for unknown id, got %#v err=%v", missing, err)
	}

	if _, err := os.Stat(cfg.JobsDBPath()); err != nil {
		t.Fatalf("expected database at %s: %v", cfg.JobsDBPath(), err)
	}
}

func TestSubmitGeneratesIDAndRejectsDuplicates(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	job, err := store.Submit(ctx, jobs.Submission{UserID: "bob", SourceURL: "https://example.com/v"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if len(job.ID) != 36 {
		t.Fatalf("expected generated uuid, got %q", job.ID)
	}

	if _, err := store.Submit(ctx, jobs.Submission{ID: job.ID, UserID: "bob", SourceURL: "https://example.com/other"}); !errors.Is(err, jobs.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestSubmitValidatesFields(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, sub := range []jobs.Submission{
		{ID: "a", SourceURL: "https://example.com"},
		{ID: "b", UserID: "u", SourceURL: "   "},
	} {
		if _, err := store.Submit(ctx, sub); !errors.Is(err, jobs.ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %+v, got %v", sub, err)
		}
	}
}

func TestSetStatusTransitions(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SubmitJob(t, store, "job-1", "u", "https://example.com/v")

	if err := store.SetStatus(ctx, "job-1", jobs.Update{Status: jobs.StatusTranscribing, Stage: "transcribing"}); err != nil {
		t.Fatalf("SetStatus working: %v", err)
	}
	job, _ := store.Get(ctx, "job-1")
	if job.Status != jobs.StatusTranscribing || job.LastHeartbeat == nil {
		t.Fatalf("expected working status with heartbeat, got %+v", job)
	}

	if err := store.SetStatus(ctx, "job-1", jobs.Update{Status: jobs.StatusFailed, Stage: "transcribing", Message: "model missing"}); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	job, _ = store.Get(ctx, "job-1")
	if job.Status != jobs.StatusFailed || job.Stage != "transcribing" || job.ErrorMessage != "model missing" {
		t.Fatalf("unexpected failed record %+v", job)
	}
	if job.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on terminal status")
	}

	if err := store.SetStatus(ctx, "missing", jobs.Update{Status: jobs.StatusCompleted}); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetStatus(ctx, "job-1", jobs.Update{Status: "bogus"}); !errors.Is(err, jobs.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown status, got %v", err)
	}
}

func TestCompletedRecordsResult(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SubmitJob(t, store, "job-1", "u", "https://example.com/v")

	if err := store.SetStatus(ctx, "job-1", jobs.Update{Status: jobs.StatusCompleted, ResultPath: "/tmp/result.json", SceneCount: 3}); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	job, _ := store.Get(ctx, "job-1")
	if job.ResultPath != "/tmp/result.json" || job.SceneCount != 3 || job.ErrorMessage != "" {
		t.Fatalf("unexpected completed record %+v", job)
	}
}

func TestClaimNextIsFIFOAndExclusive(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"first", "second", "third"} {
		testsupport.SubmitJob(t, store, id, "u", "https://example.com/"+id)
		time.Sleep(2 * time.Millisecond)
	}

	next, err := store.NextPending(ctx)
	if err != nil || next == nil || next.ID != "first" {
		t.Fatalf("expected first pending job, got %#v err=%v", next, err)
	}

	var (
		mu      sync.Mutex
		claimed = map[string]int{}
		wg      sync.WaitGroup
	)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := store.ClaimNext(ctx)
			if err != nil {
				t.Errorf("ClaimNext: %v", err)
				return
			}
			if job == nil {
				return
			}
			mu.Lock()
			claimed[job.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(claimed) != 3 {
		t.Fatalf("expected 3 distinct claims, got %v", claimed)
	}
	for id, count := range claimed {
		if count != 1 {
			t.Fatalf("job %s claimed %d times", id, count)
		}
	}

	none, err := store.ClaimNext(ctx)
	if err != nil || none != nil {
		t.Fatalf("expected nothing left to claim, got %#v err=%v", none, err)
	}
	job, _ := store.Get(ctx, "second")
	if job.Status != jobs.StatusFetching || job.LastHeartbeat == nil {
		t.Fatalf("expected claimed job in fetching with heartbeat, got %+v", job)
	}
}

func TestReclaimStale(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SubmitJob(t, store, "busy", "u", "https://example.com/v")
	testsupport.SubmitJob(t, store, "done", "u", "https://example.com/w")
	if err := store.SetStatus(ctx, "busy", jobs.Update{Status: jobs.StatusExtracting, Stage: "extracting"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStatus(ctx, "done", jobs.Update{Status: jobs.StatusCompleted}); err != nil {
		t.Fatal(err)
	}

	n, err := store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("expected fresh heartbeat to survive, reclaimed=%d err=%v", n, err)
	}

	n, err = store.ReclaimStale(ctx, time.Now().Add(time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("expected one reclaimed job, reclaimed=%d err=%v", n, err)
	}
	job, _ := store.Get(ctx, "busy")
	if job.Status != jobs.StatusPending || job.LastHeartbeat != nil {
		t.Fatalf("unexpected reclaimed job %+v", job)
	}
	done, _ := store.Get(ctx, "done")
	if done.Status != jobs.StatusCompleted {
		t.Fatalf("terminal job should not be reclaimed, got %s", done.Status)
	}
}

func TestRetry(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SubmitJob(t, store, "j", "u", "https://example.com/v")

	if _, err := store.Retry(ctx, "j"); !errors.Is(err, jobs.ErrNotRetryable) {
		t.Fatalf("expected ErrNotRetryable for pending job, got %v", err)
	}
	if _, err := store.Retry(ctx, "missing"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetStatus(ctx, "j", jobs.Update{Status: jobs.StatusFailed, Stage: "fetching", Message: "unresolvable"}); err != nil {
		t.Fatal(err)
	}
	job, err := store.Retry(ctx, "j")
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if job.Status != jobs.StatusPending || job.ErrorMessage != "" || job.Stage != "" {
		t.Fatalf("unexpected retried job %+v", job)
	}
}

func TestListStatsRemove(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SubmitJob(t, store, "a", "u", "https://example.com/a")
	testsupport.SubmitJob(t, store, "b", "u", "https://example.com/b")
	if err := store.SetStatus(ctx, "b", jobs.Update{Status: jobs.StatusCompletedEmpty}); err != nil {
		t.Fatal(err)
	}

	all, err := store.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected two jobs, got %d err=%v", len(all), err)
	}
	empty, err := store.List(ctx, jobs.StatusCompletedEmpty)
	if err != nil || len(empty) != 1 || empty[0].ID != "b" {
		t.Fatalf("unexpected filtered list %v err=%v", empty, err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[jobs.StatusPending] != 1 || stats[jobs.StatusCompletedEmpty] != 1 || stats.Total() != 2 {
		t.Fatalf("unexpected stats %v", stats)
	}

	if err := store.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, "a"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestRemoveRefusesWorkingJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SubmitJob(t, store, "busy", "u", "https://example.com/v")
	if err := store.SetStatus(ctx, "busy", jobs.Update{Status: jobs.StatusTranscribing, Stage: "transcribing"}); err != nil {
		t.Fatal(err)
	}

	if err := store.Remove(ctx, "busy"); !errors.Is(err, jobs.ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	if job, err := store.Get(ctx, "busy"); err != nil || job == nil {
		t.Fatalf("working job must survive remove, got %v err=%v", job, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.SubmitJob(t, store, "persisted", "u", "https://example.com/v")
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	job, err := reopened.Get(context.Background(), "persisted")
	if err != nil || job == nil {
		t.Fatalf("expected job to survive reopen, got %#v err=%v", job, err)
	}
}

func TestOpenRejectsForeignSchemaVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "jobs.db")
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := raw.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("stamp version: %v", err)
	}
	_ = raw.Close()

	if store, err := jobs.OpenPath(dbPath); !errors.Is(err, jobs.ErrSchemaMismatch) {
		if store != nil {
			_ = store.Close()
		}
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
