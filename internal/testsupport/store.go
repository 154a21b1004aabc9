package testsupport

import (
	"context"
	"testing"

	"vidsum/internal/config"
	"vidsum/internal/jobs"
)

// MustOpenStore opens the job database named by cfg and closes it when the
// test ends.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("open job store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SubmitJob queues a pending job and fails the test on any store error.
// An empty id lets the store assign one.
func SubmitJob(t testing.TB, store *jobs.Store, id, user, source string) *jobs.Job {
	t.Helper()

	job, err := store.Submit(context.Background(), jobs.Submission{ID: id, UserID: user, SourceURL: source})
	if err != nil {
		t.Fatalf("submit job %q: %v", id, err)
	}
	return job
}
