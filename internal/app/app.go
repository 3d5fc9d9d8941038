// Package app wires configuration, storage, the reconciler and the HTTP
// server into runnable commands.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"recvault/internal/auth"
	"recvault/internal/config"
	"recvault/internal/database"
	"recvault/internal/encryption"
	"recvault/internal/metrics"
	"recvault/internal/registry"
	"recvault/internal/vault"
	"recvault/internal/web"
)

// App is the application layer between the CLI and the services.
// It constructs all dependencies from config and manages their lifecycle
// on Close.
type App struct {
	cfg        *config.Config
	store      *database.SQLiteStore
	vault      registry.ArchiveVault
	encryptor  registry.Encryptor
	reconciler *registry.Reconciler
	server     *web.Server
	logger     registry.Logger
	logFile    *os.File
}

// NewApp creates a fully wired App from the given config. The caller must
// call Close when done. serve controls whether the HTTP surface (sessions,
// OAuth client, server) is constructed; index-only commands leave it false
// and need no Discord or session configuration.
func NewApp(cfg *config.Config, serve bool) (*App, error) {
	slogger, logFile, err := newLogger(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening index store: %w", err)
	}

	if err := store.CheckMigrations(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	v, err := vault.NewVaultFromConfig(cfg.Archive)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating archive vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	promReg := prometheus.NewRegistry()
	m := metrics.NewMetrics(promReg)

	clock := registry.RealClock{}
	idgen := registry.UUIDGenerator{}

	scanner := registry.NewScanner(cfg.Recordings.Root)
	reconciler := registry.NewReconciler(scanner, store, logger, clock, idgen, cfg.Recordings.ScanInterval(), m)

	a := &App{
		cfg:        cfg,
		store:      store,
		vault:      v,
		encryptor:  enc,
		reconciler: reconciler,
		logger:     logger,
		logFile:    logFile,
	}

	if serve {
		sessions, err := auth.NewSessionManager(cfg.Session.Secret, cfg.Session.TTL(), clock)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating session manager: %w", err)
		}
		discord := auth.NewDiscordClient(cfg.Discord)

		query := registry.NewQueryService(store)
		deleter := registry.NewDeletionService(store, v, enc, logger, m)

		a.server = web.NewServer(cfg.Server, store, query, deleter, sessions, discord, clock, logger, m, promReg)
	}

	return a, nil
}

// Serve runs the full service: one synchronous reconciliation pass to
// populate the index, then the background reconciler and the HTTP server
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	if a.server == nil {
		return fmt.Errorf("app was not constructed for serving")
	}

	if err := a.reconciler.RunPass(); err != nil {
		// The loop retries on the next tick; startup continues so the
		// API is available even when the recordings root is briefly broken.
		a.logger.Error("initial reconciliation pass failed", "error", err)
	}

	go a.reconciler.Run(ctx)
	a.server.Start()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Stop(shutdownCtx)
}

// RunIndexPass performs a single reconciliation pass and returns.
func (a *App) RunIndexPass() error {
	return a.reconciler.RunPass()
}

// Vault returns the configured archive vault, or nil when archival is
// disabled.
func (a *App) Vault() registry.ArchiveVault {
	return a.vault
}

// Encryptor returns the configured archive encryptor.
func (a *App) Encryptor() registry.Encryptor {
	return a.encryptor
}

// Close releases the database and the log file.
func (a *App) Close() error {
	var firstErr error

	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
