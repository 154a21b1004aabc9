package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "lecture.mp4")
	dst := filepath.Join(dir, "media.mp4")
	content := []byte("not really a video")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("copy = %q, want %q", got, content)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o644 {
		t.Fatalf("copy mode = %v, want 0644", perm)
	}
	assertNoTempFiles(t, dir, 2)
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "media.mp4")
	if err := CopyFileVerified(filepath.Join(dir, "nonexistent"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err = %v", err)
	}
}

func TestWriteJSONAtomicReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteJSONAtomic(path, map[string]string{"video": "ref"}); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["video"] != "ref" {
		t.Fatalf("unexpected content %q", data)
	}
	assertNoTempFiles(t, dir, 1)
}

func TestWriteFileAtomicMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent", "result.json")
	if err := WriteFileAtomic(path, []byte("{}")); err == nil {
		t.Fatal("expected error when parent directory is missing")
	}
}

func TestNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	full := filepath.Join(dir, "full")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cases := map[string]bool{
		empty:                         false,
		full:                          true,
		dir:                           false,
		filepath.Join(dir, "missing"): false,
	}
	for path, want := range cases {
		if got := NonEmptyFile(path); got != want {
			t.Fatalf("NonEmptyFile(%s) = %v, want %v", filepath.Base(path), got, want)
		}
	}
}

func assertNoTempFiles(t *testing.T, dir string, want int) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != want {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("directory holds %v, want %d entries", names, want)
	}
}
