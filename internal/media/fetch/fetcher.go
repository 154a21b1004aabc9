package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"vidsum/internal/config"
	"vidsum/internal/stage"
)

// Fetcher resolves a reference to a media file inside destDir.
type Fetcher interface {
	Fetch(ctx context.Context, reference, destDir string) (string, error)
}

// CommandRunner executes an external tool. Tests substitute a fake.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Auto sends local references to Local and everything else to Remote.
type Auto struct {
	Local  Fetcher
	Remote Fetcher
}

// New builds the default fetcher for cfg.
func New(cfg *config.Config) *Auto {
	return &Auto{
		Local:  Local{},
		Remote: NewYTDLP(cfg.Fetch),
	}
}

// Fetch dispatches on the reference form.
func (a *Auto) Fetch(ctx context.Context, reference, destDir string) (string, error) {
	if _, ok := LocalPath(reference); ok {
		return a.Local.Fetch(ctx, reference, destDir)
	}
	return a.Remote.Fetch(ctx, reference, destDir)
}

// HealthCheck reports the remote downloader's readiness.
func (a *Auto) HealthCheck(ctx context.Context) stage.Health {
	if checker, ok := a.Remote.(stage.Checker); ok {
		return checker.HealthCheck(ctx)
	}
	return stage.Healthy("fetch")
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Env = os.Environ()
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLines(string(output), 5))
	}
	return nil
}

// lastLines keeps tool diagnostics short enough for a status record.
func lastLines(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
