package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opennews/newsbox/internal/client/cache"
	"github.com/opennews/newsbox/internal/client/config"
	"github.com/opennews/newsbox/internal/client/sync"
	"github.com/opennews/newsbox/internal/db"
	"github.com/opennews/newsbox/internal/newsapi"
	"github.com/opennews/newsbox/internal/secrets"
	"github.com/opennews/newsbox/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// Client is the newsbox daemon: the cache, the sync engine and the local
// control plane, assembled from a config.
type Client struct {
	config  *config.Config
	cache   *cache.Cache
	api     *newsapi.Client
	history *sync.History
	manager *sync.Manager
	plane   *ControlPlane
}

// New wires up a daemon from the given config. The cache is locked during
// setup, so a second daemon on the same data dir fails fast.
func New(cfg *config.Config, store secrets.Store) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := cache.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := c.Setup(); err != nil {
		return nil, fmt.Errorf("cache setup: %w", err)
	}

	api := newsapi.New(cfg.ServerURL)
	token, err := store.Load(secrets.TokenKey)
	switch {
	case err == nil:
		api.SetToken(token)
	case errors.Is(err, secrets.ErrNotFound):
		slog.Debug("no api token stored, using anonymous access")
	default:
		return nil, fmt.Errorf("load api token: %w", err)
	}

	journal, err := db.NewSqliteDB(db.WithPath(filepath.Join(c.MetadataDir, "newsbox.db")))
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	history, err := sync.NewHistory(journal)
	if err != nil {
		return nil, fmt.Errorf("init pass history: %w", err)
	}

	session := sync.NewSession(api, c, history, sync.PlannerPolicy{
		ForceFullRefresh: cfg.ForceFullRefresh,
	})
	manager := sync.NewManager(session, cfg.SyncInterval.Std())

	router := buildRouter(c.Root, token, manager, history)
	plane := NewControlPlane(cfg.ControlPlaneAddr, router)

	return &Client{
		config:  cfg,
		cache:   c,
		api:     api,
		history: history,
		manager: manager,
		plane:   plane,
	}, nil
}

// Manager exposes the sync engine, mostly for one-shot CLI runs.
func (c *Client) Manager() *sync.Manager {
	return c.manager
}

// Start runs the sync scheduler and the control plane until ctx is canceled,
// then shuts both down. Blocks for the lifetime of the daemon.
func (c *Client) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return c.manager.Start(egCtx)
	})
	eg.Go(func() error {
		return c.plane.Start(egCtx)
	})
	eg.Go(func() error {
		<-egCtx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return c.plane.Shutdown(shutdownCtx)
	})

	err := eg.Wait()
	c.close()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *Client) close() {
	c.manager.Stop()
	if err := c.history.Close(); err != nil {
		slog.Error("close journal db", "error", err)
	}
	c.api.Close()
	if err := c.cache.Unlock(); err != nil {
		slog.Error("unlock cache", "error", err)
	}
	slog.Info("client stopped", "root", c.cache.Root)
}

// ResolveSecretsPath returns the secrets file location used when the OS
// keyring is unavailable.
func ResolveSecretsPath() (string, error) {
	return utils.ResolvePath(config.DefaultSecretsPath)
}
