// Package cli assembles the client for the command-line commands.
package cli

import (
	"fmt"

	"github.com/typeworld/typeworld-go/internal/application/client"
	"github.com/typeworld/typeworld-go/internal/infrastructure/config"
	"github.com/typeworld/typeworld-go/internal/infrastructure/keyring"
	"github.com/typeworld/typeworld-go/internal/infrastructure/mothership"
	"github.com/typeworld/typeworld-go/internal/shared/logger"

	prefsStore "github.com/typeworld/typeworld-go/internal/infrastructure/prefs"
	sharedConfig "github.com/typeworld/typeworld-go/internal/shared/config"

	// register the json subscription protocol
	_ "github.com/typeworld/typeworld-go/internal/protocol/jsonproto"
)

// App bundles everything a command needs: the loaded configuration, the
// assembled client and the logger.
type App struct {
	Config *config.Config
	Client *client.Client
	Log    logger.Interface

	store prefsStore.Store
}

// Setup loads configuration, initializes logging and assembles the
// client. Every command calls this first.
func Setup(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	store, err := openPrefs(&cfg.Preferences)
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}

	c, err := client.New(client.Options{
		Prefs:      store,
		Keyring:    keyring.NewSystem(),
		Mothership: mothership.New(cfg.Client.Mothership, log),
		Log:        log,
		AppID:      cfg.Client.AppID,
		FontsDir:   cfg.Client.FontsFolder,
		Commercial: cfg.Client.Commercial,
		Offline:    !cfg.Client.Online,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &App{
		Config: cfg,
		Client: c,
		Log:    log,
		store:  store,
	}, nil
}

// Close flushes and releases the preferences backend.
func (a *App) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warnw("failed to close preferences", "error", err)
		}
	}
}

func openPrefs(cfg *sharedConfig.PreferencesConfig) (prefsStore.Store, error) {
	switch cfg.Backend {
	case "json", "":
		return prefsStore.NewJSONStore(cfg.Path)
	case "sqlite":
		return prefsStore.NewSQLiteStore(cfg.Path)
	case "memory":
		return prefsStore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown preferences backend %q", cfg.Backend)
	}
}
