package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phillip-england/lotdesk/internal/backend"
	"github.com/phillip-england/lotdesk/internal/cache"
	"github.com/phillip-england/lotdesk/internal/config"
	"github.com/phillip-england/lotdesk/internal/dashboardapp"
	"github.com/phillip-england/lotdesk/internal/devapi"
	"github.com/phillip-england/lotdesk/internal/security"
	"github.com/phillip-england/lotdesk/internal/session"
)

const (
	targetDashboard = "dashboard"
	targetDevAPI    = "devapi"
	targetAll       = "all"
)

func newRunCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "run dashboard|devapi|all",
		Short: "Run the dashboard, the development backend, or both",
		Long: `Run the servers until SIGINT or SIGTERM.

  dashboard  the sales admin dashboard
  devapi     the SQLite development backend
  all        both, with the dashboard pointed at whatever API_BASE_URL says`,
		Args:      exactTarget(targetDashboard, targetDevAPI, targetAll),
		ValidArgs: []string{targetDashboard, targetDevAPI, targetAll},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.environment()
			if err != nil {
				return err
			}
			defer syncLogger(logger)

			ctx, cancel := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			switch args[0] {
			case targetDashboard:
				err = runDashboard(ctx, cfg, logger)
			case targetDevAPI:
				err = runDevAPI(ctx, cfg, logger)
			default:
				err = runAll(ctx, cfg, logger)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return g.out.Error("El servidor se detuvo con un error", err.Error())
			}
			return nil
		},
	}
}

func runAll(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return runDevAPI(ctx, cfg, logger) })
	group.Go(func() error { return runDashboard(ctx, cfg, logger) })
	return group.Wait()
}

func runDevAPI(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if err := ensureParentDirs(cfg.DevAPI.DBPath); err != nil {
		return err
	}
	store, err := devapi.OpenStore(ctx, cfg.DevAPI.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := devapi.New(devapi.Options{Config: cfg.DevAPI, Store: store, Logger: logger.Named("devapi")})
	if err != nil {
		return err
	}
	if err := srv.Bootstrap(ctx); err != nil {
		return err
	}
	return srv.Run(ctx)
}

func runDashboard(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.Dashboard.SessionSecret == "" {
		secret, err := security.RandomSecret(32)
		if err != nil {
			return err
		}
		cfg.Dashboard.SessionSecret = secret
		logger.Warn("no session secret configured, sessions will not survive a restart")
	}
	sealer, err := security.NewSealer(cfg.Dashboard.SessionSecret)
	if err != nil {
		return err
	}

	client, err := connectRedis(ctx, cfg, logger)
	if err != nil {
		return err
	}
	var (
		store    cache.Store
		sessions *session.Store
	)
	if client != nil {
		store = cache.NewRedis(client, cfg.Redis.Prefix+":cache")
		sessions = session.NewRedisStore(client, cfg.Redis.Prefix, sealer, cfg.Dashboard.SessionTTL)
	} else {
		store = cache.NewMemory()
		sessions = session.NewMemoryStore(sealer, cfg.Dashboard.SessionTTL)
	}
	defer store.Close()

	srv, err := dashboardapp.New(dashboardapp.Options{
		Config:   cfg,
		API:      newBackend(cfg, store, logger),
		Sessions: sessions,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// connectRedis returns nil when no Redis URL is configured.
func connectRedis(ctx context.Context, cfg config.Config, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Redis.URL == "" {
		logger.Info("redis not configured, using in-memory cache and sessions")
		return nil, nil
	}
	client, err := cache.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func newBackend(cfg config.Config, store cache.Store, logger *zap.Logger) *backend.Client {
	return backend.New(backend.Options{
		BaseURL:    cfg.Backend.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Backend.Timeout},
		Cache:      store,
		CacheTTL:   cfg.Backend.CacheTTL,
		Logger:     logger.Named("backend"),
	})
}

func ensureParentDirs(paths ...string) error {
	for _, p := range paths {
		dir := filepath.Dir(p)
		if dir == "." || dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
