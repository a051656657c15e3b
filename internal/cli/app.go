package cli

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mmynk/savingcircle/internal/config"
	"github.com/mmynk/savingcircle/internal/engine"
	"github.com/mmynk/savingcircle/internal/groupstore"
	"github.com/mmynk/savingcircle/internal/metrics"
	"github.com/mmynk/savingcircle/internal/notify"
	"github.com/mmynk/savingcircle/internal/remote"
	"github.com/mmynk/savingcircle/internal/session"
	"github.com/mmynk/savingcircle/pkg/logging"
)

// app is the client stack shared by every command of one invocation.
type app struct {
	cfg     *config.Client
	logger  *slog.Logger
	session *session.Session
	client  *remote.Client
	store   *groupstore.Store
	engine  *engine.Engine
	out     *OutputFormatter
	metrics *prometheus.Registry
	verbose bool
}

func newApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	path := opts.ConfigFile
	if path == "" {
		path = config.DefaultConfigFile()
	}
	cfg, err := config.LoadClient(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Server != "" {
		cfg.ServerURL = opts.Server
	}
	if opts.TokenFile != "" {
		cfg.TokenFile = opts.TokenFile
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(cmd.ErrOrStderr(), level)

	sess := session.New(session.FileStore{Path: cfg.TokenFile})
	if err := sess.Restore(); err != nil {
		logger.Warn("Ignoring stored session", "path", cfg.TokenFile, "error", err)
	}

	client := remote.New(&http.Client{Timeout: cfg.Timeout}, cfg.ServerURL, sess, remote.WithLogger(logger))
	store := groupstore.New(client, sess).WithLogger(logger)
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	var notifier notify.Notifier = notify.NewWriter(cmd.ErrOrStderr())
	switch {
	case opts.Format != "text":
		// Structured formats get notifications as log records.
		notifier = notify.Log{Logger: logger}
	case opts.Verbose:
		notifier = notify.Multi(notifier, notify.Log{Logger: logger})
	}
	reg := prometheus.NewRegistry()
	eng := engine.New(client, store, sess,
		engine.WithLogger(logger),
		engine.WithMetrics(metrics.NewEngine(reg)),
		engine.WithNotifier(notifier),
		engine.WithReconcileDelay(cfg.ReconcileDelay),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		session: sess,
		client:  client,
		store:   store,
		engine:  eng,
		out:     out,
		metrics: reg,
		verbose: opts.Verbose,
	}, nil
}

// close waits for queued engine work, then logs the engine counters when
// verbose.
func (a *app) close() {
	a.engine.Close()
	if !a.verbose {
		return
	}
	if err := metrics.LogSnapshot(context.Background(), a.logger, a.metrics); err != nil {
		a.logger.Debug("Skipping metrics", "error", err)
	}
}

// requireSession fails with an auth exit code when nobody is signed in.
func (a *app) requireSession() error {
	if !a.session.Authenticated() {
		return NewExitError(ExitAuthError, "not logged in: run 'circle login' first")
	}
	return nil
}
