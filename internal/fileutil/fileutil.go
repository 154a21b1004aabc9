package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFileVerified copies src to dst through a sibling temp file, then
// re-reads the copy and compares its SHA-256 with the digest taken while
// reading src. dst only appears once the copy is known good.
func CopyFileVerified(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	want := sha256.New()
	tmpName, err := writeTemp(dst, func(w io.Writer) error {
		_, err := io.Copy(w, io.TeeReader(in, want))
		return err
	})
	if err != nil {
		return err
	}

	got, err := digestFile(tmpName)
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if !bytes.Equal(got, want.Sum(nil)) {
		_ = os.Remove(tmpName)
		return fmt.Errorf("copy of %s does not match source digest", filepath.Base(src))
	}
	return commit(tmpName, dst)
}

// WriteFileAtomic writes data to a sibling temp file and renames it over
// path, so readers never observe a partially written artifact.
func WriteFileAtomic(path string, data []byte) error {
	tmpName, err := writeTemp(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return err
	}
	return commit(tmpName, path)
}

// WriteJSONAtomic encodes v as indented JSON and writes it with WriteFileAtomic.
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return WriteFileAtomic(path, append(data, '\n'))
}

// NonEmptyFile reports whether path is a regular file with at least one byte.
func NonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// writeTemp fills a synced temp file next to target and returns its name.
// The temp file is removed on any failure.
func writeTemp(target string, fill func(io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	fail := func(step string, err error) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("%s temp file: %w", step, err)
	}
	if err := fill(tmp); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return name, nil
}

func commit(tmpName, path string) error {
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func digestFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("digest %s: %w", filepath.Base(path), err)
	}
	return h.Sum(nil), nil
}
