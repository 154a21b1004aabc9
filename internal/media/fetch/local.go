package fetch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"vidsum/internal/fileutil"
	"vidsum/internal/services"
	"vidsum/internal/workdir"
)

// Local copies a file already on disk into the job directory.
type Local struct{}

// Fetch copies reference to destDir/media<ext>, replacing earlier media.
func (Local) Fetch(_ context.Context, reference, destDir string) (string, error) {
	src, err := NormalizeReference(reference)
	if err != nil {
		return "", services.Wrap(services.ErrAcquisition, stageName, "normalize reference", "invalid reference", err)
	}
	if !fileutil.NonEmptyFile(src) {
		return "", services.Wrap(services.ErrAcquisition, stageName, "local copy", "source is missing or empty", os.ErrNotExist)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrAcquisition, stageName, "prepare destination", "create directory", err)
	}
	if err := workdir.RemoveMediaFiles(destDir); err != nil {
		return "", services.Wrap(services.ErrAcquisition, stageName, "prepare destination", "remove stale media", err)
	}

	dest := workdir.MediaPath(destDir, strings.ToLower(filepath.Ext(src)))
	if err := fileutil.CopyFileVerified(src, dest); err != nil {
		return "", services.Wrap(services.ErrAcquisition, stageName, "local copy", "copy media", err)
	}
	return dest, nil
}
