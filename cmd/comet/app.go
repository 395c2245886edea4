package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	gemini "github.com/knowfox/comet"
	"github.com/knowfox/comet/config"
	"github.com/knowfox/comet/history"
	"github.com/knowfox/comet/identity"
)

// app holds what the commands share: preferences, the database and the
// stores built on it.
type app struct {
	prefs    config.Preferences
	logger   *slog.Logger
	db       *badger.DB
	history  history.Store
	registry *identity.Registry
	keystore *identity.FileKeystore
	provider *identity.Provider
}

func openApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	prefs, err := flags.preferences(cmd)
	if err != nil {
		return nil, err
	}
	logger := flags.logger()

	opts := badger.DefaultOptions(filepath.Join(prefs.DataDir, "db"))
	if prefs.DataDir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logger.With("component", "badger")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	keyDir := filepath.Join(prefs.DataDir, "keys")
	if prefs.DataDir == "" {
		keyDir = filepath.Join(os.TempDir(), "comet-keys")
	}
	a := &app{
		prefs:    prefs,
		logger:   logger,
		db:       db,
		history:  history.NewBadgerStore(db),
		registry: identity.NewRegistry(db),
		keystore: &identity.FileKeystore{Dir: keyDir},
	}
	a.provider = &identity.Provider{Registry: a.registry, Keystore: a.keystore, Logger: logger}
	return a, nil
}

func (a *app) client() *gemini.Client {
	d := a.prefs.Dialer()
	d.Logger = a.logger
	return &gemini.Client{Transport: d, Logger: a.logger}
}

func (a *app) Close() error {
	if err := a.registry.Close(); err != nil {
		a.logger.Warn("release identity sequence", "error", err)
	}
	return a.db.Close()
}

// badgerLogger routes Badger's printf logging to slog.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(fmt.Sprintf(format, args...))
}
