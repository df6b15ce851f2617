package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"croptalk/internal/reconcile"
	"croptalk/pkg/banner"
	"croptalk/pkg/chat"
	"croptalk/pkg/config"
	"croptalk/pkg/logger"
	"croptalk/pkg/store"
	"croptalk/pkg/validation"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfig
	version   string
	commit    string
	buildDate string

	svc    *chat.Service
	srv    *http.Server
	cancel context.CancelFunc
}

// New initializes resources that do not require a running context
// (store, validation rules). It does not start the reconcile scheduler
// or the HTTP server; call Run to start those and block until shutdown.
func New(eff config.EffectiveConfig, version, commit, buildDate string) (*App, error) {
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	validation.SetRules(validation.Rules{
		MaxContentBytes: eff.Config.Limits.MaxContentBytes.Int64(),
	})

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	return &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		svc:       chat.NewService(),
	}, nil
}

// Run starts the reconcile scheduler and the HTTP server, and blocks
// until ctx is cancelled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancelReconcile, err := reconcile.Start(ctx, a.eff.Config.Reconcile, a.svc)
	if err != nil {
		return err
	}
	defer cancelReconcile()

	a.printBanner()

	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		return a.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown drains the HTTP server and closes the store.
func (a *App) shutdown() error {
	timeout := a.eff.Config.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Error("http_shutdown_failed", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
		return err
	}
	logger.Info("shutdown_complete")
	return nil
}

func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.Print(a.eff, verStr)
}
