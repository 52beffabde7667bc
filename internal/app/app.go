// Package app composes the risk engine from configuration: gateway selection,
// reference data, persistence, the admission manager and the admin surface.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"tradeguard/internal/config"
	"tradeguard/internal/logger"
	"tradeguard/internal/market"
	"tradeguard/internal/risk"
	"tradeguard/internal/store/riskstate"
	adminhttp "tradeguard/internal/transport/http/admin"
)

type App struct {
	cfg     *config.Config
	cfgPath string

	manager *risk.Manager
	admin   *adminhttp.Server
	store   *riskstate.Store
	spreads *market.SpreadCache

	// set when the binance gateway is active; streams book tickers
	streamSpreads func(ctx context.Context)
}

// NewApp wires dependencies from configuration without starting anything.
func NewApp(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return build(cfg, cfgPath)
}

// Run starts every component and blocks until ctx is cancelled, a component
// fails, or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.manager == nil {
		return fmt.Errorf("app not initialized")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("start risk manager: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.admin.Start(ctx); err != nil {
			return fmt.Errorf("admin server error: %w", err)
		}
		return nil
	})

	if a.streamSpreads != nil {
		group.Go(func() error {
			a.streamSpreads(ctx)
			return nil
		})
	}

	group.Go(func() error {
		return a.watchConfig(ctx)
	})

	group.Go(func() error {
		<-ctx.Done()
		a.manager.Stop()
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				logger.Warnf("app: risk state store close failed: %v", err)
			}
		}
		return nil
	})

	logger.Infof("tradeguard running (env=%s broker=%s symbols=%d)",
		a.cfg.App.Env, a.cfg.Broker.Exchange, len(a.cfg.Broker.Symbols))
	return group.Wait()
}

// watchConfig pushes validated config edits into the manager as UpdateConfig
// commands. A reload only touches the risk and sizing sections; broker and
// app settings require a restart.
func (a *App) watchConfig(ctx context.Context) error {
	if a.cfgPath == "" {
		<-ctx.Done()
		return nil
	}
	return config.Watch(ctx, a.cfgPath, func(next *config.Config) {
		if err := a.manager.UpdateConfigCmd(ctx, next.Risk, next.Sizing); err != nil {
			logger.Warnf("app: config reload rejected: %v", err)
			return
		}
		logger.Infof("app: risk configuration reloaded from %s", a.cfgPath)
	})
}

// Manager exposes the risk manager for embedding and tests.
func (a *App) Manager() *risk.Manager { return a.manager }
