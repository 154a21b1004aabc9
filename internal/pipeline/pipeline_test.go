package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vidsum/internal/jobs"
	"vidsum/internal/pipeline"
	"vidsum/internal/services"
	"vidsum/internal/stage"
	"vidsum/internal/summary"
	"vidsum/internal/testsupport"
	"vidsum/internal/transcript"
	"vidsum/internal/workdir"
)

type fakeFetcher struct {
	calls int
	refs  []string
	err   error
	hook  func()
}

func (f *fakeFetcher) Fetch(_ context.Context, ref, destDir string) (string, error) {
	f.calls++
	f.refs = append(f.refs, ref)
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(destDir, "media.webm")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeExtractor struct {
	calls int
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, _, audioPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(audioPath, []byte("RIFF"), 0o644)
}

type fakeTranscriber struct {
	calls    int
	segments []transcript.Segment
	err      error
}

func (f *fakeTranscriber) Transcribe(context.Context, string) ([]transcript.Segment, error) {
	f.calls++
	return f.segments, f.err
}

type fakeCapability struct {
	mu    sync.Mutex
	calls int
	fail  string
}

func (f *fakeCapability) Summarize(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail != "" && strings.Contains(text, f.fail) {
		return "", errors.New("upstream 500")
	}
	return "about " + text, nil
}

type recordingSink struct {
	mu      sync.Mutex
	updates []jobs.Update
}

func (s *recordingSink) SetStatus(_ context.Context, _ string, update jobs.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	return nil
}

func (s *recordingSink) statuses() []jobs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]jobs.Status, 0, len(s.updates))
	for _, u := range s.updates {
		out = append(out, u.Status)
	}
	return out
}

func (s *recordingSink) last() jobs.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[len(s.updates)-1]
}

type harness struct {
	root        string
	fetcher     *fakeFetcher
	extractor   *fakeExtractor
	transcriber *fakeTranscriber
	capability  *fakeCapability
	sink        *recordingSink
	pipeline    *pipeline.Pipeline
}

func newHarness(t *testing.T, segs ...transcript.Segment) *harness {
	t.Helper()
	h := &harness{
		root:        t.TempDir(),
		fetcher:     &fakeFetcher{},
		extractor:   &fakeExtractor{},
		transcriber: &fakeTranscriber{segments: segs},
		capability:  &fakeCapability{},
		sink:        &recordingSink{},
	}
	p, err := pipeline.New(pipeline.Deps{
		Fetcher:     h.fetcher,
		Extractor:   h.extractor,
		Transcriber: h.transcriber,
		Summarizer:  summary.New(h.capability),
		Sink:        h.sink,
	}, pipeline.Options{WorkRoot: h.root, ChunkWidth: 15 * time.Second, SummaryConcurrency: 2})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	h.pipeline = p
	return h
}

func (h *harness) layout(t *testing.T, job pipeline.Job) *workdir.Layout {
	t.Helper()
	layout, err := workdir.Open(h.root, job.UserID, job.ID)
	if err != nil {
		t.Fatalf("workdir.Open: %v", err)
	}
	return layout
}

// seededLayout opens job's working directory as a previous run for the same
// source would have left it.
func (h *harness) seededLayout(t *testing.T, job pipeline.Job) *workdir.Layout {
	t.Helper()
	layout := h.layout(t, job)
	ref, err := pipeline.NewJob(job.SourceURL, job.UserID, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := layout.RecordSource(ref.SourceURL); err != nil {
		t.Fatalf("RecordSource: %v", err)
	}
	return layout
}

func seg(start, end int, text string) transcript.Segment {
	return transcript.Segment{Start: time.Duration(start) * time.Second, End: time.Duration(end) * time.Second, Text: text}
}

func testJob() pipeline.Job {
	return pipeline.Job{ID: "job-1", UserID: "user-1", SourceURL: "https://www.youtube.com/watch?v=abc&list=PL1&index=2"}
}

func TestRunCompletesWithScenes(t *testing.T) {
	h := newHarness(t, seg(0, 10, "hello"), seg(14, 16, "world"), seg(20, 25, "bye"))
	job := testJob()

	outcome, err := h.pipeline.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != stage.Completed {
		t.Fatalf("expected completed, got %s", outcome.State)
	}
	if len(h.fetcher.refs) != 1 || h.fetcher.refs[0] != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("fetcher saw %v", h.fetcher.refs)
	}

	want := []jobs.Status{jobs.StatusFetching, jobs.StatusExtracting, jobs.StatusTranscribing, jobs.StatusSegmenting, jobs.StatusCompleted}
	got := h.sink.statuses()
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses = %v, want %v", got, want)
		}
	}
	final := h.sink.last()
	if final.SceneCount != 2 || final.ResultPath != outcome.ResultPath {
		t.Fatalf("unexpected completion update %+v", final)
	}

	result, err := pipeline.LoadResult(outcome.ResultPath)
	if err != nil {
		t.Fatalf("LoadResult: %v", err)
	}
	if result.Video != "https://www.youtube.com/watch?v=abc" || len(result.Scenes) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	first, second := result.Scenes[0], result.Scenes[1]
	if first.ID != "s1" || first.Start != 0 || first.End != 15*time.Second || first.Transcript != "hello world" {
		t.Fatalf("unexpected first window %+v", first)
	}
	if second.ID != "s2" || second.Start != 15*time.Second || second.End != 25*time.Second || second.Transcript != "bye" {
		t.Fatalf("unexpected second window %+v", second)
	}
	if first.Summary != "about hello world" {
		t.Fatalf("unexpected summary %q", first.Summary)
	}

	layout := h.layout(t, job)
	for _, path := range []string{layout.AudioPath(), layout.TranscriptPath()} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected intermediate artifact %s to remain: %v", path, err)
		}
	}
}

func TestResultJSONShape(t *testing.T) {
	h := newHarness(t, seg(0, 3, "hi"))
	outcome, err := h.pipeline.Run(context.Background(), testJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(outcome.ResultPath)
	if err != nil {
		t.Fatal(err)
	}
	var raw struct {
		Video  string                   `json:"video"`
		Scenes []map[string]interface{} `json:"scenes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw.Scenes) != 1 {
		t.Fatalf("unexpected scenes %s", data)
	}
	scene := raw.Scenes[0]
	for _, key := range []string{"id", "start", "end", "transcript", "summary"} {
		if _, ok := scene[key]; !ok {
			t.Fatalf("scene missing %q: %s", key, data)
		}
	}
	if scene["start"] != float64(0) || scene["end"] != float64(3) {
		t.Fatalf("expected whole-second bounds, got %s", data)
	}
}

func TestFetchFailureLeavesNoArtifacts(t *testing.T) {
	h := newHarness(t, seg(0, 3, "hi"))
	h.fetcher.err = services.Wrap(services.ErrAcquisition, "fetching", "yt-dlp", "download failed", errors.New("HTTP Error 404"))
	job := testJob()

	outcome, err := h.pipeline.Run(context.Background(), job)
	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != stage.Fetching {
		t.Fatalf("expected fetching StageError, got %v", err)
	}
	if !errors.Is(err, services.ErrAcquisition) {
		t.Fatalf("expected acquisition marker, got %v", err)
	}
	if outcome.State != stage.Failed || outcome.Stage != stage.Fetching {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	final := h.sink.last()
	if final.Status != jobs.StatusFailed || final.Stage != "fetching" || !strings.Contains(final.Message, "404") {
		t.Fatalf("unexpected failure update %+v", final)
	}

	layout := h.layout(t, job)
	for _, path := range []string{layout.AudioPath(), layout.TranscriptPath(), layout.ResultPath()} {
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s to be absent, stat err %v", path, err)
		}
	}
	if h.extractor.calls != 0 || h.transcriber.calls != 0 {
		t.Fatal("later stages ran after fetch failure")
	}
}

func TestInvalidReferenceFailsInFetching(t *testing.T) {
	h := newHarness(t)
	job := testJob()
	job.SourceURL = "ftp://example.com/video"

	_, err := h.pipeline.Run(context.Background(), job)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if final := h.sink.last(); final.Status != jobs.StatusFailed || final.Stage != "fetching" {
		t.Fatalf("unexpected failure update %+v", final)
	}
	if h.fetcher.calls != 0 {
		t.Fatal("fetcher invoked for invalid reference")
	}
}

func TestZeroSegmentsCompletesEmpty(t *testing.T) {
	h := newHarness(t)

	outcome, err := h.pipeline.Run(context.Background(), testJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != stage.CompletedEmpty {
		t.Fatalf("expected completed_empty, got %s", outcome.State)
	}
	if h.capability.calls != 0 {
		t.Fatalf("summarizer called %d times for empty transcript", h.capability.calls)
	}
	statuses := h.sink.statuses()
	for _, status := range statuses {
		if status == jobs.StatusSegmenting {
			t.Fatalf("segmenting reported for empty transcript: %v", statuses)
		}
	}
	if final := h.sink.last(); final.Status != jobs.StatusCompletedEmpty {
		t.Fatalf("unexpected final update %+v", final)
	}

	data, err := os.ReadFile(outcome.ResultPath)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["scenes"]; ok {
		t.Fatalf("expected scenes key omitted, got %s", data)
	}
	if _, ok := raw["video"]; !ok {
		t.Fatalf("expected video key, got %s", data)
	}
}

func TestSummaryFailureDegradesOneWindow(t *testing.T) {
	h := newHarness(t, seg(0, 5, "good"), seg(16, 20, "bad"))
	h.capability.fail = "bad"

	outcome, err := h.pipeline.Run(context.Background(), testJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.State != stage.Completed {
		t.Fatalf("expected completed, got %s", outcome.State)
	}
	scenes := outcome.Result.Scenes
	if scenes[0].Summary != "about good" {
		t.Fatalf("unexpected first summary %q", scenes[0].Summary)
	}
	if scenes[1].Summary != summary.UnavailableSummary {
		t.Fatalf("expected unavailable sentinel, got %q", scenes[1].Summary)
	}
}

func TestTranscriptionFailureIsClassified(t *testing.T) {
	h := newHarness(t)
	h.transcriber.err = errors.New("model not found")
	job := testJob()
	layout := h.layout(t, job)
	if err := os.WriteFile(layout.ResultPath(), []byte(`{"video":"old"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := h.pipeline.Run(context.Background(), job)
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription marker, got %v", err)
	}
	if final := h.sink.last(); final.Stage != "transcribing" {
		t.Fatalf("unexpected failure update %+v", final)
	}
	if _, err := os.Stat(layout.ResultPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("stale result survived a failed run")
	}
	if _, err := os.Stat(layout.AudioPath()); err != nil {
		t.Fatalf("expected audio to remain after failure: %v", err)
	}
}

func TestResumeFromTranscriptSkipsEarlierStages(t *testing.T) {
	h := newHarness(t)
	job := testJob()
	layout := h.seededLayout(t, job)
	if err := transcript.Save(layout.TranscriptPath(), []transcript.Segment{seg(0, 4, "resumed")}); err != nil {
		t.Fatal(err)
	}

	outcome, err := h.pipeline.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.fetcher.calls+h.extractor.calls+h.transcriber.calls != 0 {
		t.Fatalf("expected no capability calls, got fetch=%d extract=%d transcribe=%d",
			h.fetcher.calls, h.extractor.calls, h.transcriber.calls)
	}
	if outcome.Result.Scenes[0].Transcript != "resumed" {
		t.Fatalf("unexpected scenes %+v", outcome.Result.Scenes)
	}
	if outcome.Result.Video != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("unexpected video %q", outcome.Result.Video)
	}
}

func TestResumeFromAudioSkipsFetch(t *testing.T) {
	h := newHarness(t, seg(0, 2, "x"))
	job := testJob()
	layout := h.seededLayout(t, job)
	testsupport.WriteFile(t, layout.AudioPath(), 64)

	if _, err := h.pipeline.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.fetcher.calls != 0 || h.extractor.calls != 0 {
		t.Fatalf("expected fetch and extract skipped, got fetch=%d extract=%d", h.fetcher.calls, h.extractor.calls)
	}
	if h.transcriber.calls != 1 {
		t.Fatalf("expected one transcription, got %d", h.transcriber.calls)
	}
}

func TestUnmarkedMediaIsFetchedAgain(t *testing.T) {
	h := newHarness(t, seg(0, 2, "x"))
	job := testJob()
	layout := h.seededLayout(t, job)
	testsupport.WriteFile(t, workdir.MediaPath(layout.Root, ".webm"), 64)

	if _, err := h.pipeline.Run(context.Background(), job); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.fetcher.calls != 1 {
		t.Fatalf("expected truncated download to be fetched again, got %d calls", h.fetcher.calls)
	}
}

func TestCollidingJobIDsDoNotShareArtifacts(t *testing.T) {
	h := newHarness(t, seg(0, 4, "first video speech"))
	first := pipeline.Job{ID: "a/b", UserID: "user-1", SourceURL: "https://www.youtube.com/watch?v=FIRST"}
	if _, err := h.pipeline.Run(context.Background(), first); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	h.transcriber.segments = []transcript.Segment{seg(0, 4, "second video speech")}
	second := pipeline.Job{ID: "a b", UserID: "user-1", SourceURL: "https://www.youtube.com/watch?v=OTHER"}
	outcome, err := h.pipeline.Run(context.Background(), second)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if h.pipeline.WorkDir(first) == h.pipeline.WorkDir(second) {
		t.Fatalf("jobs %q and %q share %s", first.ID, second.ID, h.pipeline.WorkDir(first))
	}
	if h.fetcher.calls != 2 || h.transcriber.calls != 2 {
		t.Fatalf("second job reused artifacts: fetch=%d transcribe=%d", h.fetcher.calls, h.transcriber.calls)
	}
	if got := outcome.Result.Scenes[0].Transcript; got != "second video speech" {
		t.Fatalf("second job transcript = %q", got)
	}
}

func TestChangedSourceDiscardsCachedArtifacts(t *testing.T) {
	h := newHarness(t, seg(0, 4, "first video speech"))
	job := testJob()
	if _, err := h.pipeline.Run(context.Background(), job); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	h.transcriber.segments = []transcript.Segment{seg(0, 4, "second video speech")}
	job.SourceURL = "https://youtu.be/other"
	outcome, err := h.pipeline.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if h.fetcher.calls != 2 || h.extractor.calls != 2 || h.transcriber.calls != 2 {
		t.Fatalf("expected every stage to run again, got fetch=%d extract=%d transcribe=%d",
			h.fetcher.calls, h.extractor.calls, h.transcriber.calls)
	}
	if h.fetcher.refs[1] != "https://youtu.be/other" || outcome.Result.Video != "https://youtu.be/other" {
		t.Fatalf("unexpected reference: fetched %v, result %q", h.fetcher.refs, outcome.Result.Video)
	}
	if got := outcome.Result.Scenes[0].Transcript; got != "second video speech" {
		t.Fatalf("transcript from the earlier source leaked: %q", got)
	}
	if ref, _ := h.layout(t, job).RecordedSource(); ref != "https://youtu.be/other" {
		t.Fatalf("recorded source = %q", ref)
	}
}

func TestUnremovablePartialAudioFailsExtraction(t *testing.T) {
	h := newHarness(t, seg(0, 2, "x"))
	job := testJob()
	layout := h.seededLayout(t, job)
	testsupport.WriteFile(t, filepath.Join(layout.AudioTempPath(), "stuck"), 1)

	_, err := h.pipeline.Run(context.Background(), job)
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
	if h.extractor.calls != 0 {
		t.Fatal("extractor ran over an unremovable partial file")
	}
	if final := h.sink.last(); final.Status != jobs.StatusFailed || final.Stage != "extracting" {
		t.Fatalf("unexpected failure update %+v", final)
	}
}

func TestCancellationStopsAtStageBoundary(t *testing.T) {
	h := newHarness(t, seg(0, 2, "x"))
	job := testJob()
	ctx, cancel := context.WithCancel(context.Background())
	h.fetcher.hook = cancel

	outcome, err := h.pipeline.Run(ctx, job)
	if !errors.Is(err, pipeline.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if outcome.State != stage.Fetching {
		t.Fatalf("expected fetch to finish before cancellation, got %s", outcome.State)
	}
	if h.extractor.calls != 0 {
		t.Fatal("extraction started after cancellation")
	}
	if final := h.sink.last(); final.Status != jobs.StatusPending {
		t.Fatalf("expected job returned to pending, got %+v", final)
	}

	h.fetcher.hook = nil
	outcome, err = h.pipeline.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if outcome.State != stage.Completed || h.fetcher.calls != 1 {
		t.Fatalf("expected resume without refetch, state=%s fetch calls=%d", outcome.State, h.fetcher.calls)
	}
}

func TestBusyWorkingDirectory(t *testing.T) {
	h := newHarness(t)
	job := testJob()
	holder := h.layout(t, job)
	if err := holder.Lock(); err != nil {
		t.Fatal(err)
	}
	defer holder.Unlock()

	_, err := h.pipeline.Run(context.Background(), job)
	if !errors.Is(err, workdir.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if len(h.sink.statuses()) != 0 {
		t.Fatalf("busy run must not touch the job record, got %v", h.sink.statuses())
	}
}

func TestRunUpdatesJobStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	h := newHarness(t, seg(0, 20, "long segment"))
	p, err := pipeline.New(pipeline.Deps{
		Fetcher:     h.fetcher,
		Extractor:   h.extractor,
		Transcriber: h.transcriber,
		Sink:        store,
	}, pipeline.Options{WorkRoot: cfg.Paths.WorkDir, ChunkWidth: cfg.ChunkWidth()})
	if err != nil {
		t.Fatal(err)
	}
	submitted := testsupport.SubmitJob(t, store, "", "alice", "https://youtu.be/xyz")

	_, err = p.Run(context.Background(), pipeline.Job{ID: submitted.ID, UserID: submitted.UserID, SourceURL: submitted.SourceURL})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	job, err := store.Get(context.Background(), submitted.ID)
	if err != nil || job == nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != jobs.StatusCompleted || job.SceneCount != 2 || job.ResultPath == "" {
		t.Fatalf("unexpected job record %+v", job)
	}
	result, err := pipeline.LoadResult(job.ResultPath)
	if err != nil {
		t.Fatal(err)
	}
	if result.Scenes[1].Transcript != "" || result.Scenes[1].Summary != summary.NoSpeechSummary {
		t.Fatalf("expected silent second window, got %+v", result.Scenes[1])
	}
	if result.Scenes[0].Summary != summary.UnavailableSummary {
		t.Fatalf("expected unavailable summary without backend, got %q", result.Scenes[0].Summary)
	}
}

func TestNewJob(t *testing.T) {
	job, err := pipeline.NewJob(" https://www.youtube.com/watch?v=abc&list=PL ", "bob", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.SourceURL != "https://www.youtube.com/watch?v=abc" || job.ID == "" || job.UserID != "bob" {
		t.Fatalf("unexpected job %+v", job)
	}
	if _, err := pipeline.NewJob("", "bob", ""); err == nil {
		t.Fatal("expected error for empty source")
	}
	if _, err := pipeline.NewJob("https://youtu.be/x", " ", ""); err == nil {
		t.Fatal("expected error for empty user")
	}
}
