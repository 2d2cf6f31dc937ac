package cli

import (
	"context"
	"fmt"

	"github.com/opsweep/opsweep/internal/config"
	"github.com/opsweep/opsweep/internal/pkg/logger"
	"github.com/opsweep/opsweep/internal/providers"
	"github.com/opsweep/opsweep/internal/repository/sqlite"
	"github.com/opsweep/opsweep/internal/services"
	"github.com/opsweep/opsweep/internal/store"
)

// app bundles the collaborators most commands need.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	blobs store.BlobStore
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	blobs, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup store: %w", err)
	}

	return &app{cfg: cfg, log: log, blobs: blobs}, nil
}

// executor wires a full run pipeline. The returned cleanup closes the
// run-history index.
func (a *app) executor() (*services.Executor, func(), error) {
	catalog, err := providers.NewAzureCatalog(a.cfg.Azure, a.log)
	if err != nil {
		return nil, nil, err
	}

	var index services.RunIndex
	cleanup := func() {}
	history, err := sqlite.New(a.cfg.History.Path)
	if err != nil {
		// A broken index degrades the history command, not the run.
		a.log.ErrorWithErr(err, "failed to open run history index, runs will not be indexed")
	} else {
		index = history
		cleanup = func() { _ = history.Close() }
	}

	var notifier services.Notifier = services.NoopNotifier{}
	if a.cfg.Notify.SlackWebhookURL != "" {
		notifier = services.NewSlackNotifier(a.cfg.Notify.SlackWebhookURL, a.log)
	}

	exec := services.NewExecutor(catalog, a.blobs, index, notifier, services.NewTerminalPrompter(), a.cfg.Run, a.log)
	return exec, cleanup, nil
}
