// Package app wires configuration to the batch components and implements
// the table operations shared by the CLI commands and batch plans.
package app

import (
	"context"
	"strings"

	"github.com/deploymenttheory/go-batch-runner/internal/assets"
	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/config"
	"github.com/deploymenttheory/go-batch-runner/internal/logger"
	"github.com/deploymenttheory/go-batch-runner/internal/project"
	"github.com/deploymenttheory/go-batch-runner/internal/relay"
	"github.com/deploymenttheory/go-batch-runner/internal/snapshot"
	"go.uber.org/zap"
)

// App holds the collaborators built from configuration
type App struct {
	Config   config.AppConfig
	Projects project.Provider
	Relay    relay.Relay
	Cache    snapshot.Cache // nil when snapshots are disabled
	Log      *zap.SugaredLogger

	// NewStorage builds the upload target for a token
	NewStorage func(token string) assets.Storage
}

// New builds an App from cfg
func New(cfg config.AppConfig) (*App, error) {
	log := logger.Logger

	var projects project.Provider
	if cfg.Project.APIURL != "" {
		projects = project.NewHTTPProvider(cfg.Project.APIURL, cfg.Relay.Timeout)
	} else {
		projects = project.NewFileProvider(cfg.Project.Dir)
	}

	cache, err := snapshot.New(snapshot.Options{
		Provider:      cfg.Snapshot.Provider,
		Dir:           cfg.Snapshot.Dir,
		TTL:           cfg.Snapshot.TTL,
		RedisAddr:     cfg.Snapshot.Redis.Addr,
		RedisPassword: cfg.Snapshot.Redis.Password,
		RedisDB:       cfg.Snapshot.Redis.DB,
	})
	if err != nil {
		return nil, err
	}

	storageURL := cfg.Assets.StorageURL
	timeout := cfg.Relay.Timeout
	return &App{
		Config:   cfg,
		Projects: projects,
		Relay:    relay.NewClient(cfg.Relay.URL, timeout, log),
		Cache:    cache,
		Log:      log,
		NewStorage: func(token string) assets.Storage {
			return assets.NewHTTPStorage(storageURL, token, timeout)
		},
	}, nil
}

// Token picks the API token: the explicit value, then configuration, then
// the project, then a remembered token. remember stores an explicit token.
func (a *App) Token(ctx context.Context, explicit string, proj *project.Config, remember bool) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		if remember && a.Cache != nil {
			if err := snapshot.SaveToken(ctx, a.Cache, explicit); err != nil {
				a.Log.Warnw("Failed to remember API token", "error", err)
			}
		}
		return explicit, nil
	}
	if token := strings.TrimSpace(a.Config.Runner.APIToken); token != "" {
		return token, nil
	}
	if proj != nil && proj.APIToken != "" {
		return proj.APIToken, nil
	}
	if a.Cache != nil {
		token, err := snapshot.LoadToken(ctx, a.Cache)
		if err != nil {
			a.Log.Warnw("Ignoring unreadable remembered token", "error", err)
		} else if token != "" {
			return token, nil
		}
	}
	return "", errors.ErrMissingToken
}
