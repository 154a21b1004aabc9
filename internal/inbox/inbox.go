package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"vidsum/internal/jobs"
	"vidsum/internal/logging"
	"vidsum/internal/pipeline"
	"vidsum/internal/services"
)

const (
	acceptedDir     = "accepted"
	rejectedDir     = "rejected"
	descriptorExt   = ".json"
	defaultSettle   = 250 * time.Millisecond
	maxDescriptorSz = 64 << 10
)

// Submitter records jobs. *jobs.Store satisfies it.
type Submitter interface {
	Submit(ctx context.Context, sub jobs.Submission) (*jobs.Job, error)
}

// Watcher submits descriptors found in one directory.
type Watcher struct {
	dir    string
	store  Submitter
	logger *slog.Logger
	settle time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher for dir.
func New(dir string, store Submitter, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:     dir,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "inbox"),
		settle:  defaultSettle,
		pending: make(map[string]*time.Timer),
	}
}

// WithSettle overrides how long a descriptor must stay unchanged before it
// is read.
func (w *Watcher) WithSettle(d time.Duration) *Watcher {
	w.settle = d
	return w
}

// Run sweeps descriptors already present, then watches for new ones until
// ctx ends.
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{"", acceptedDir, rejectedDir} {
		if err := os.MkdirAll(filepath.Join(w.dir, sub), 0o755); err != nil {
			return fmt.Errorf("create inbox directory: %w", err)
		}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("add watch path: %w", err)
	}

	w.logger.Info("inbox watching",
		logging.String(logging.FieldEventType, "inbox_start"),
		logging.String("dir", w.dir),
	)
	w.Sweep(ctx)

	ready := make(chan string, 16)
	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 || !isDescriptor(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name, ready)
		case path := <-ready:
			w.finishTimer(path)
			if err := w.Process(ctx, path); err != nil {
				w.logger.Warn("descriptor processing failed", logging.String("path", path), logging.Error(err))
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Warn("watcher error", logging.Error(err))
		}
	}
}

// Sweep processes every descriptor currently in the directory.
func (w *Watcher) Sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("inbox sweep failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !isDescriptor(entry.Name()) {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if err := w.Process(ctx, path); err != nil {
			w.logger.Warn("descriptor processing failed", logging.String("path", path), logging.Error(err))
		}
	}
}

// Process submits one descriptor and files it under accepted/ or rejected/.
// A descriptor that disappeared before it was read is ignored.
func (w *Watcher) Process(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	job, submitErr := w.submit(ctx, data)
	if submitErr != nil {
		reason := services.Reason(submitErr)
		logging.WarnWithContext(w.logger, "descriptor rejected", "inbox_rejected",
			logging.String("path", path),
			logging.String("reason", reason),
			logging.String(logging.FieldImpact, "no job was created for this descriptor"),
		)
		dest, err := w.move(path, rejectedDir)
		if err != nil {
			return err
		}
		return os.WriteFile(dest+".err", []byte(reason+"\n"), 0o644)
	}
	w.logger.Info("descriptor accepted",
		logging.String(logging.FieldEventType, "inbox_accepted"),
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldUserID, job.UserID),
	)
	_, err = w.move(path, acceptedDir)
	return err
}

func (w *Watcher) submit(ctx context.Context, data []byte) (*jobs.Job, error) {
	if len(data) > maxDescriptorSz {
		return nil, fmt.Errorf("descriptor larger than %d bytes", maxDescriptorSz)
	}
	var sub jobs.Submission
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&sub); err != nil {
		return nil, fmt.Errorf("decode descriptor: %w", err)
	}
	job, err := pipeline.NewJob(sub.SourceURL, sub.UserID, sub.ID)
	if err != nil {
		return nil, err
	}
	return w.store.Submit(ctx, jobs.Submission{ID: job.ID, UserID: job.UserID, SourceURL: job.SourceURL})
}

// move renames path into sub/, adding a timestamp when the name is taken.
func (w *Watcher) move(path, sub string) (string, error) {
	name := filepath.Base(path)
	dest := filepath.Join(w.dir, sub, name)
	if _, err := os.Stat(dest); err == nil {
		stem := strings.TrimSuffix(name, descriptorExt)
		dest = filepath.Join(w.dir, sub, fmt.Sprintf("%s-%d%s", stem, time.Now().UnixNano(), descriptorExt))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move descriptor to %s: %w", sub, err)
	}
	return dest, nil
}

func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) finishTimer(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func isDescriptor(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(strings.ToLower(name), descriptorExt) && !strings.HasPrefix(name, ".")
}
