// Package workdir owns the on-disk layout of a job: one directory per
// (user, job) pair holding the media, waveform, transcript, and result
// artifacts, guarded by an exclusive lock file so two runs of the same job
// never interleave.
package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"vidsum/internal/fileutil"
	"vidsum/internal/textutil"
)

const (
	mediaBase      = "media"
	audioName      = "audio.wav"
	audioTempName  = "audio.partial.wav"
	mediaMarker    = ".media-complete"
	sourceRecord   = ".source"
	transcriptName = "transcript.json"
	resultName     = "result.json"
	lockName       = ".lock"
	whisperDirName = "whisperx"
)

// ErrBusy is returned by Lock when another run holds the job directory.
var ErrBusy = errors.New("working directory is locked by another run")

// Layout resolves artifact paths for one job.
type Layout struct {
	Root string
	lock *flock.Flock
}

// Dir returns the working directory for a job without creating it. Distinct
// (user, job) pairs always resolve to distinct directories.
func Dir(workRoot, userID, jobID string) string {
	return filepath.Join(workRoot, textutil.DistinctSegment(userID, "anonymous"), textutil.DistinctSegment(jobID, "job"))
}

// Open creates the working directory for (userID, jobID) if it is absent.
func Open(workRoot, userID, jobID string) (*Layout, error) {
	if strings.TrimSpace(workRoot) == "" {
		return nil, errors.New("work root is required")
	}
	root := Dir(workRoot, userID, jobID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	return &Layout{Root: root}, nil
}

// Lock takes a non-blocking exclusive lock on the job directory.
func (l *Layout) Lock() error {
	if l.lock == nil {
		l.lock = flock.New(l.LockPath())
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrBusy, l.Root)
	}
	return nil
}

// Unlock releases the job lock. Safe to call when not locked.
func (l *Layout) Unlock() error {
	if l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// MediaTemplate is the yt-dlp output template for media downloaded into dir.
func MediaTemplate(dir string) string {
	return filepath.Join(dir, mediaBase+".%(ext)s")
}

// MediaPath returns the media path in dir for a given extension (with dot).
func MediaPath(dir, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	return filepath.Join(dir, mediaBase+ext)
}

func (l *Layout) AudioPath() string      { return filepath.Join(l.Root, audioName) }
func (l *Layout) TranscriptPath() string { return filepath.Join(l.Root, transcriptName) }
func (l *Layout) ResultPath() string     { return filepath.Join(l.Root, resultName) }
func (l *Layout) LockPath() string       { return filepath.Join(l.Root, lockName) }

// WhisperDirFor is the WhisperX scratch directory beside an audio artifact.
func WhisperDirFor(audioPath string) string {
	return filepath.Join(filepath.Dir(audioPath), whisperDirName)
}

// AudioTempPath is where extraction writes before the rename into AudioPath.
func (l *Layout) AudioTempPath() string { return filepath.Join(l.Root, audioTempName) }

// MarkMedia records path as the fully downloaded media file.
func (l *Layout) MarkMedia(path string) error {
	if filepath.Dir(path) != l.Root {
		return fmt.Errorf("media %s is outside %s", path, l.Root)
	}
	return fileutil.WriteFileAtomic(filepath.Join(l.Root, mediaMarker), []byte(filepath.Base(path)+"\n"))
}

// ClearMediaMark forgets the completed download so a crash during the next
// fetch cannot leave a marker pointing at a truncated file.
func (l *Layout) ClearMediaMark() error {
	err := os.Remove(filepath.Join(l.Root, mediaMarker))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// CompletedMedia returns the media file recorded by MarkMedia when it still
// exists and is non-empty.
func (l *Layout) CompletedMedia() (string, bool) {
	data, err := os.ReadFile(filepath.Join(l.Root, mediaMarker))
	if err != nil {
		return "", false
	}
	name := filepath.Base(strings.TrimSpace(string(data)))
	if name == "." || name == "" {
		return "", false
	}
	path := filepath.Join(l.Root, name)
	if !fileutil.NonEmptyFile(path) {
		return "", false
	}
	return path, true
}

// MediaFiles lists files named media.* in dir, skipping partial downloads.
func MediaFiles(dir string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, mediaBase+".*"))
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		switch filepath.Ext(match) {
		case ".part", ".ytdl", ".tmp":
			continue
		}
		out = append(out, match)
	}
	sort.Strings(out)
	return out
}

// RemoveMediaFiles deletes every media.* file in dir, partial downloads
// included.
func RemoveMediaFiles(dir string) error {
	matches, _ := filepath.Glob(filepath.Join(dir, mediaBase+".*"))
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale media %s: %w", filepath.Base(match), err)
		}
	}
	return nil
}

// RecordSource stores the normalized reference the directory's artifacts
// belong to.
func (l *Layout) RecordSource(ref string) error {
	return fileutil.WriteFileAtomic(filepath.Join(l.Root, sourceRecord), []byte(ref+"\n"))
}

// RecordedSource returns the reference saved by RecordSource.
func (l *Layout) RecordedSource() (string, bool) {
	data, err := os.ReadFile(filepath.Join(l.Root, sourceRecord))
	if err != nil {
		return "", false
	}
	ref := strings.TrimSpace(string(data))
	return ref, ref != ""
}

// Reset deletes every artifact and the source record, leaving only the lock
// file. Used when the directory holds output for a different reference.
func (l *Layout) Reset() error {
	if err := l.ClearMediaMark(); err != nil {
		return fmt.Errorf("remove media marker: %w", err)
	}
	if err := RemoveMediaFiles(l.Root); err != nil {
		return err
	}
	for _, name := range []string{audioName, audioTempName, transcriptName, resultName, sourceRecord} {
		if err := os.Remove(filepath.Join(l.Root, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	if err := os.RemoveAll(WhisperDirFor(l.AudioPath())); err != nil {
		return fmt.Errorf("remove whisperx scratch: %w", err)
	}
	return nil
}
