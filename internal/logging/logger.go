package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"

	"vidsum/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// OutputPaths lists "stdout", "stderr", or file paths. Defaults to stdout.
	OutputPaths []string
	// Development adds source locations at every level.
	Development bool
	// NoColor disables ANSI level colors even on a terminal. The NO_COLOR
	// environment variable has the same effect.
	NoColor bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))

	out, err := openOutputs(opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "json":
		return slog.New(newJSONHandler(out.w, levelVar, addSource)), nil
	case "", "console":
		color := out.terminal && !opts.NoColor && os.Getenv("NO_COLOR") == ""
		return slog.New(newPrettyHandler(out.w, levelVar, addSource, color)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig creates the process logger. Output goes to stderr plus
// vidsum.log in the configured log directory.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{OutputPaths: []string{"stderr"}})
	}
	paths := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		paths = append(paths, filepath.Join(cfg.Paths.LogDir, "vidsum.log"))
	}
	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: paths,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type output struct {
	w io.Writer
	// terminal is true only when every target is a terminal, so log files
	// never receive escape codes.
	terminal bool
}

func openOutputs(paths []string) (output, error) {
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}
	var (
		writers []io.Writer
		seen    []string
	)
	terminal := true
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" || slices.Contains(seen, path) {
			continue
		}
		seen = append(seen, path)

		switch path {
		case "stdout":
			writers = append(writers, os.Stdout)
			terminal = terminal && isTerminal(os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
			terminal = terminal && isTerminal(os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return output{}, fmt.Errorf("ensure log directory: %w", err)
			}
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return output{}, fmt.Errorf("open log file %s: %w", path, err)
			}
			writers = append(writers, file)
			terminal = false
		}
	}
	switch len(writers) {
	case 0:
		return output{w: os.Stdout, terminal: isTerminal(os.Stdout)}, nil
	case 1:
		return output{w: writers[0], terminal: terminal}, nil
	default:
		return output{w: io.MultiWriter(writers...), terminal: terminal}, nil
	}
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
