package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"vidsum/internal/fileutil"
	"vidsum/internal/scenes"
)

// Result is the persisted artifact of a completed job. Scenes is omitted when
// no speech was detected.
type Result struct {
	Video  string          `json:"video"`
	Scenes []scenes.Window `json:"scenes,omitempty"`
}

// SaveResult writes r to path atomically.
func SaveResult(path string, r Result) error {
	if err := fileutil.WriteJSONAtomic(path, r); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

// LoadResult reads a result artifact.
func LoadResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", path, err)
	}
	return &r, nil
}
