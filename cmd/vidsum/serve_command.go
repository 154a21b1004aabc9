package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vidsum/internal/api"
	"vidsum/internal/config"
	"vidsum/internal/inbox"
	"vidsum/internal/jobs"
	"vidsum/internal/logging"
	"vidsum/internal/media/audio"
	"vidsum/internal/media/fetch"
	"vidsum/internal/metrics"
	"vidsum/internal/stage"
	"vidsum/internal/transcribe"
	"vidsum/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: job workers plus the HTTP API and inbox when enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				logger, err := ctx.logger(cfg)
				if err != nil {
					return err
				}
				registry := metrics.New(store)
				runner, err := ctx.newRunner(cfg, logger, store, registry)
				if err != nil {
					return err
				}
				checkers, err := healthCheckers(cfg)
				if err != nil {
					return err
				}

				sigCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				manager := workflow.NewManager(cfg, store, runner, logger, workflow.WithHealthChecks(checkers...))
				if err := manager.Start(sigCtx); err != nil {
					return fmt.Errorf("start workflow: %w", err)
				}
				defer manager.Stop()

				if cfg.API.Enabled {
					server, err := api.NewServer(cfg, api.Deps{
						Store:    store,
						Workflow: manager,
						Metrics:  registry,
						Logger:   logger,
					})
					if err != nil {
						return err
					}
					if err := server.Start(sigCtx); err != nil {
						return err
					}
					defer server.Stop()
					fmt.Fprintf(cmd.OutOrStdout(), "API listening on %s\n", server.Addr())
				}

				inboxDone := make(chan struct{})
				if cfg.Inbox.Enabled {
					watcher := inbox.New(cfg.Paths.InboxDir, store, logger)
					go func() {
						defer close(inboxDone)
						if err := watcher.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
							logging.ErrorWithContext(logger, "inbox stopped", "inbox_failed",
								logging.Error(err),
								logging.String(logging.FieldErrorHint, "check that the inbox directory exists and is readable"),
							)
						}
					}()
				} else {
					close(inboxDone)
				}

				logger.Info("vidsum daemon started",
					logging.String(logging.FieldEventType, "daemon_start"),
					logging.Bool("api", cfg.API.Enabled),
					logging.Bool("inbox", cfg.Inbox.Enabled),
				)
				<-sigCtx.Done()
				<-inboxDone
				logger.Info("vidsum daemon shutting down", logging.String(logging.FieldEventType, "daemon_stop"))
				return nil
			})
		},
	}
}

// healthCheckers returns the pipeline capabilities that can report their
// own readiness.
func healthCheckers(cfg *config.Config) ([]stage.Checker, error) {
	checkers := []stage.Checker{
		fetch.New(cfg),
		audio.NewFFmpeg(cfg.Audio),
	}
	transcriber, err := transcribe.New(cfg)
	if err != nil {
		return nil, err
	}
	if checker, ok := transcriber.(stage.Checker); ok {
		checkers = append(checkers, checker)
	}
	return checkers, nil
}
