package main

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vidsum/internal/config"
	"vidsum/internal/jobs"
	"vidsum/internal/logging"
	"vidsum/internal/pipeline"
	"vidsum/internal/stageexec"
	"vidsum/internal/workflow"
)

// runnerFactory builds the in-process pipeline used by run and serve.
type runnerFactory func(cfg *config.Config, logger *slog.Logger, sink stageexec.StatusSink, m pipeline.Metrics) (workflow.Runner, error)

type contextOption func(*commandContext)

// withRunnerFactory swaps the pipeline constructor, letting tests avoid
// external binaries.
func withRunnerFactory(factory runnerFactory) contextOption {
	return func(c *commandContext) { c.newRunner = factory }
}

// withLogger replaces the configured logger.
func withLogger(logger *slog.Logger) contextOption {
	return func(c *commandContext) { c.loggerOverride = logger }
}

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	newRunner      runnerFactory
	loggerOverride *slog.Logger
}

func newCommandContext(configFlag *string, opts ...contextOption) *commandContext {
	c := &commandContext{
		configFlag: configFlag,
		newRunner:  defaultRunnerFactory,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultRunnerFactory(cfg *config.Config, logger *slog.Logger, sink stageexec.StatusSink, m pipeline.Metrics) (workflow.Runner, error) {
	p, err := pipeline.NewFromConfig(cfg, logger, sink, m)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	if c.loggerOverride != nil {
		return c.loggerOverride, nil
	}
	return logging.NewFromConfig(cfg)
}

// withStore opens the job store for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *jobs.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := jobs.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// defaultUserID is the submitting user when --user is omitted.
func defaultUserID() string {
	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return user
	}
	return "local"
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
