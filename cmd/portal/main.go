package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/api"
	"github.com/schoolone/portal/internal/app"
	"github.com/schoolone/portal/internal/credential"
	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/notifications"
	"github.com/schoolone/portal/internal/session"
	"github.com/schoolone/portal/internal/store"
	appsync "github.com/schoolone/portal/internal/sync"
	"github.com/schoolone/portal/internal/unread"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "portal:", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Config ───────────────────────────────────────────────────────────────
	cfgPath := model.DefaultConfigPath()
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	// ── Logging ──────────────────────────────────────────────────────────────
	// The terminal belongs to the UI, so logs go to a file.
	logger, closeLog, err := openLog(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info().Str("api", cfg.API.BaseURL).Msg("starting portal")

	// ── Backend client & session ─────────────────────────────────────────────
	client := api.NewClient(cfg.API, logger)

	var secrets session.Secrets
	if vault, err := credential.Open(model.ConfigDir()); err != nil {
		logger.Warn().Err(err).Msg("credential vault unavailable, session will not persist")
	} else {
		secrets = vault
	}

	sess := session.NewManager(client, secrets, logger)
	if ok, err := sess.Resume(); err != nil {
		logger.Warn().Err(err).Msg("could not resume session")
	} else if ok {
		logger.Info().Msg("resumed stored session")
	}

	// ── Unread count, feed & poller ──────────────────────────────────────────
	counts := unread.New()
	feed := notifications.New(client, counts, sess, logger)

	poller := appsync.NewCoordinator(appsync.Config{
		BadgeInterval: cfg.Polling.BadgeInterval(),
		ListInterval:  cfg.Polling.ListInterval(),
		FetchTimeout:  cfg.Polling.FetchTimeout(),
		Fetcher:       client,
		Store:         counts,
		Logger:        logger,
	})
	poller.Attach(sess)
	defer poller.Close()

	// ── Local cache ──────────────────────────────────────────────────────────
	var cache store.Store
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		logger.Warn().Err(err).Msg("cannot create cache directory")
	} else if db, err := store.NewSQLiteStore(cfg.Cache.Path); err != nil {
		logger.Warn().Err(err).Msg("notification cache disabled")
	} else {
		cache = db
		defer db.Close()
	}

	// ── UI ───────────────────────────────────────────────────────────────────
	root := app.New(app.Deps{
		Config:     cfg,
		ConfigPath: cfgPath,
		Session:    sess,
		Counts:     counts,
		Feed:       feed,
		Poller:     poller,
		Cache:      cache,
		Logger:     logger,
	})

	if _, err := tea.NewProgram(root, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}

	logger.Info().Msg("portal stopped")
	return nil
}

func openLog(cfg model.LogConfig) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.File == "" {
		return zerolog.Nop(), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
	}

	logger := zerolog.New(f).Level(level).With().Timestamp().Logger()
	return logger, func() { _ = f.Close() }, nil
}
