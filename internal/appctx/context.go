// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stratusio/stratus-cli/internal/account"
	"github.com/stratusio/stratus-cli/internal/config"
	"github.com/stratusio/stratus-cli/internal/keystore"
	"github.com/stratusio/stratus-cli/internal/observability"
	"github.com/stratusio/stratus-cli/internal/resilience"
	"github.com/stratusio/stratus-cli/internal/restclient"
	"github.com/stratusio/stratus-cli/internal/settings"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config   *config.Config
	Settings *settings.Store
	Accounts *account.Manager
	Client   *restclient.Client
	Logger   *slog.Logger
	Stats    *observability.SessionCollector

	// Flags holds the global flag values
	Flags GlobalFlags
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	ClientID string
	DataDir  string
	Verbose  int
}

// NewApp creates a new App with the given configuration. Accounts are loaded
// from disk before the app is returned.
func NewApp(cfg *config.Config, verbose int) (*App, error) {
	level := slog.LevelWarn
	if verbose > 0 {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	settingsStore, err := settings.Open(filepath.Join(cfg.DataDir, "settings.json"))
	if err != nil {
		return nil, err
	}

	keys := keystore.Open(cfg.DataDir)
	store := account.NewStore(filepath.Join(cfg.DataDir, "accounts"))
	accounts := account.NewManager(cfg, store, settingsStore, keys, logger)
	if err := accounts.LoadAccounts(); err != nil {
		return nil, err
	}

	// Pick up settings rewritten by another process while we run.
	if err := settingsStore.Watch(func(changed []string) {
		logger.Debug("settings changed externally", "keys", changed)
	}); err != nil {
		logger.Warn("settings watcher unavailable", "error", err)
	}

	// Trace lines only at -vv; stats collect regardless.
	stats := observability.NewSessionCollector()
	traceLevel := observability.LevelSilent
	if verbose > 1 {
		traceLevel = observability.LevelRequests
	}
	hooks := observability.NewTraceHooks(traceLevel, stats, observability.NewTraceWriter())

	client := restclient.New(accounts,
		restclient.WithLogger(logger),
		restclient.WithHooks(hooks),
		restclient.WithRetry(resilience.DefaultRetryConfig()),
	)

	return &App{
		Config:   cfg,
		Settings: settingsStore,
		Accounts: accounts,
		Client:   client,
		Logger:   logger,
		Stats:    stats,
	}, nil
}

// Shutdown flushes pending account state and releases resources.
func (a *App) Shutdown() error {
	a.Client.Close()
	if err := a.Accounts.SaveAccounts(); err != nil {
		return err
	}
	return a.Settings.Close()
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
