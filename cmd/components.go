package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/minsuoh/hipass-capture/internal/artifact"
	"github.com/minsuoh/hipass-capture/internal/browser"
	"github.com/minsuoh/hipass-capture/internal/capture"
	"github.com/minsuoh/hipass-capture/internal/config"
	"github.com/minsuoh/hipass-capture/internal/pipeline"
)

// components holds the wired core of the application, shared by the serve
// and capture commands.
type components struct {
	Manager *browser.Manager
	Store   *artifact.Store
	Runner  *pipeline.Runner

	logger *zap.Logger
}

const shutdownGracePeriod = 15 * time.Second

// initializeComponents builds the browser engine, artifact store, and
// pipeline runner from the resolved configuration.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	store, err := artifact.NewStore(cfg.Capture.ScreenshotsDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	manager := browser.NewManager(browser.Options{
		Headless: cfg.Browser.Headless,
		Args:     cfg.Browser.Args,
		Install:  cfg.Browser.Install,
	}, logger)

	orchCfg := capture.OrchestratorConfig{
		Credentials: capture.Credentials{
			UserID:          cfg.Portal.UserID,
			Password:        cfg.Portal.Password,
			AccountSelector: cfg.Portal.AccountSelector,
		},
		URLs: capture.URLs{
			Login:  cfg.Portal.LoginURL,
			Lookup: cfg.Portal.LookupURL,
		},
		Timeouts:     capture.DefaultTimeouts(),
		NoDataPhrase: cfg.Capture.NoDataPhrase,
		Cooldown:     cfg.Capture.Cooldown,
	}
	runner := pipeline.NewRunner(manager, store, orchCfg, logger)

	return &components{
		Manager: manager,
		Store:   store,
		Runner:  runner,
		logger:  logger,
	}, nil
}

// Shutdown tears down the browser process. A fresh context is used so
// cleanup still gets its grace period after a cancelled run.
func (c *components) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := c.Manager.Shutdown(shutdownCtx); err != nil {
		c.logger.Warn("Browser shutdown reported an error", zap.Error(err))
	}
}
