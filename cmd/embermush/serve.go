// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EmberMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/embermush/embermush/internal/artifact"
	"github.com/embermush/embermush/internal/config"
	"github.com/embermush/embermush/internal/control"
	"github.com/embermush/embermush/internal/dialog"
	"github.com/embermush/embermush/internal/freeze"
	"github.com/embermush/embermush/internal/logging"
	"github.com/embermush/embermush/internal/observability"
	"github.com/embermush/embermush/internal/sched"
	"github.com/embermush/embermush/internal/store"
	"github.com/embermush/embermush/internal/telnet"
	"github.com/embermush/embermush/internal/totp"
	"github.com/embermush/embermush/internal/twofa"
	"github.com/embermush/embermush/internal/world"
)

// sessionGaugeInterval is how often the active-session gauge is refreshed.
const sessionGaugeInterval = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the EmberMUSH server",
		Long: `Start the EmberMUSH server: the telnet listener, the two-factor
authentication gate, the control socket and the observability endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd)
		},
	}

	// Flag names mirror config keys so flags layer over the file.
	def := config.Default()
	flags := cmd.Flags()
	flags.String("server.listen-addr", def.Server.ListenAddr, "telnet listen address")
	flags.String("server.metrics-addr", def.Server.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("server.log-level", def.Server.LogLevel, "log level (debug, info, warn, error)")
	flags.String("server.log-format", def.Server.LogFormat, "log format (json or text)")
	flags.String("database.url", def.Database.URL, "PostgreSQL connection URL")
	flags.Bool("database.auto-migrate", def.Database.AutoMigrate, "apply pending migrations on startup")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("embermush", version, cfg.Server.LogFormat, cfg.Server.LogLevel)

	slog.Info("starting server",
		"listen_addr", cfg.Server.ListenAddr,
		"log_format", cfg.Server.LogFormat,
	)

	sealKey, err := cfg.SealKey()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("connected to database")

	if cfg.Database.AutoMigrate {
		if err := autoMigrate(cfg.Database.URL); err != nil {
			return err
		}
	}

	creds, err := store.NewCredentialStore(pool, sealKey)
	if err != nil {
		return err
	}

	w := world.New(cfg.SpawnPosition())

	guard, err := freeze.NewGuard(w, artifact.IsArtifact, noticesFrom(cfg.Messages))
	if err != nil {
		return err
	}
	if cfg.Auth.OrientDelay > 0 {
		guard.SetViewLockInterval(cfg.Auth.OrientDelay.Std())
	}
	go guard.Run(ctx)

	gateway := telnet.NewGateway()

	controller, err := twofa.NewController(cfg.AuthGate(), cfg.Messages, twofa.Deps{
		Store:     creds,
		Codes:     totp.NewEngine(),
		Freezer:   guard,
		Timers:    sched.New(),
		Presenter: gateway,
		Artifacts: artifact.NewIssuer(),
		World:     w,
		Logger:    slog.Default(),
	})
	if err != nil {
		return err
	}

	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Server.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.Server.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		twofa.RegisterMetrics(obsServer.Registry())

		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			return startErr
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")

		metrics = obsServer.Metrics()
		go trackSessions(ctx, metrics.SessionsActive, controller)
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	telnetServer := telnet.NewServer(cfg.Server.ListenAddr, telnet.Deps{
		World:     w,
		Guard:     guard,
		Gate:      controller,
		Directory: creds,
		Gateway:   gateway,
		Metrics:   metrics,
	})
	telnetErrCh := make(chan error, 1)
	go func() {
		telnetErrCh <- telnetServer.Run(ctx)
	}()

	controlServer := control.NewServer("serve", control.Hooks{
		Shutdown: control.ShutdownFunc(cancel),
		Reload: func() error {
			fresh, loadErr := config.Load(configFile, cmd.Flags())
			if loadErr != nil {
				return loadErr
			}
			controller.UpdateMessages(fresh.Messages)
			return nil
		},
		RemoveUser: func(ctx context.Context, name string) error {
			id, found, resolveErr := creds.Resolve(ctx, name)
			if resolveErr != nil {
				return resolveErr
			}
			if !found {
				return control.ErrUnknownPrincipal
			}
			return controller.ResetPrincipal(ctx, id)
		},
	})
	if cfg.Server.ControlSocket != "" {
		controlServer.SetSocketPath(cfg.Server.ControlSocket)
	}
	if err := controlServer.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("EmberMUSH server started")
	slog.Info("server ready", "listen_addr", cfg.Server.ListenAddr)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case serveErr := <-telnetErrCh:
		if serveErr != nil {
			slog.Error("telnet server failed", "error", serveErr)
		}
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := controller.Shutdown(shutdownCtx); err != nil {
		slog.Warn("error shutting down authentication controller", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
	if err := controlServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping control socket", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// noticesFrom maps the message catalogue onto the frozen-envelope notices.
func noticesFrom(c dialog.Catalog) freeze.Notices {
	return freeze.Notices{
		Chat:    c.Errors.NoChat,
		Command: c.Errors.FinishLogin,
		Drop:    c.Errors.NoDropArtifact,
	}
}

// autoMigrate applies pending migrations on startup.
func autoMigrate(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		slog.Info("database schema up to date")
		return nil
	}

	slog.Info("applying pending migrations", "count", len(pending))
	if err := migrator.Up(); err != nil {
		return err
	}
	slog.Info("migrations applied")
	return nil
}

// trackSessions mirrors the controller's in-progress session count onto
// the gauge.
func trackSessions(ctx context.Context, gauge prometheus.Gauge, controller *twofa.Controller) {
	ticker := time.NewTicker(sessionGaugeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gauge.Set(float64(controller.ActiveSessions()))
		}
	}
}

// monitorServerErrors cancels the run context when a background server
// reports an error. It exits when an error arrives, the channel closes or
// the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
