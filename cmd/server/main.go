package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/projectdesk/internal/api"
	"github.com/good-yellow-bee/projectdesk/internal/api/health"
	"github.com/good-yellow-bee/projectdesk/internal/chat"
	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/filestore"
	"github.com/good-yellow-bee/projectdesk/internal/logutil"
	"github.com/good-yellow-bee/projectdesk/internal/metrics"
	"github.com/good-yellow-bee/projectdesk/internal/storage"
	"github.com/good-yellow-bee/projectdesk/pkg/config"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "projectdesk-server",
	Short: "ProjectDesk Server - project collaboration backend",
	Long: `ProjectDesk Server hosts projects, their files, tasks and chat rooms,
and serves the REST, SSE and WebSocket APIs used by the web client.`,
	SilenceUsage: true,
	RunE:         runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("projectdesk-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env (if any), the optional config file and the
// environment, then validates the result.
func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}
	cfg.Verbose = verbose
	if verbose {
		cfg.Logging.Level = "debug"
	}

	if err := logutil.Setup(logutil.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStorage opens and migrates the database, creating its directory.
func openStorage(cfg *Config) (*storage.SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.WithField("path", cfg.Database.Path).Info("database initialized")
	return store, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServing(); err != nil {
		return err
	}

	if err := logutil.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, config.Version); err != nil {
		log.WithError(err).Warn("sentry disabled")
	}
	defer logutil.FlushSentry(2 * time.Second)
	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := store.EnsureAdminUser(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}

	files, err := filestore.New(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("open uploads: %w", err)
	}

	hub := chat.NewHub(cfg.Chat.Buffer)
	deps := api.Deps{Store: store, Files: files, Hub: hub}

	var relay *chat.RedisRelay
	if cfg.Chat.RedisURL != "" {
		relay, err = chat.NewRedisRelay(cfg.Chat.RedisURL, hub)
		if err != nil {
			return fmt.Errorf("create redis relay: %w", err)
		}
		defer relay.Close()
		deps.Publisher = relay
	}

	srv, err := api.New(cfg.APIConfig(), deps)
	if err != nil {
		return fmt.Errorf("create API server: %w", err)
	}
	srv.RegisterHealthChecker(health.NewSQLiteChecker(store.DB()))
	srv.RegisterHealthChecker(health.NewUploadsChecker(files.Check))
	if relay != nil {
		srv.RegisterHealthChecker(health.NewRedisChecker(relay))
	}

	report, err := srv.Services().Projects.Reconcile(ctx, collab.ReconcileOptions{})
	if err != nil {
		logutil.LogError("startup reconcile failed", err, nil)
	} else {
		logReport(report)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx) })
	if relay != nil {
		g.Go(func() error { return relay.Run(ctx) })
	}
	if cfg.Uploads.Watch {
		g.Go(func() error { return files.Watch(ctx, srv.Services().Files.HandleRemoved) })
	}
	if cfg.Metrics.Enabled {
		ms := metrics.NewServer(cfg.Metrics.Address)
		g.Go(func() error { return ms.Run(ctx) })
	}
	g.Go(func() error { return srv.Run(ctx) })

	log.WithFields(log.Fields{
		"version": config.Version,
		"address": srv.Address(),
	}).Info("starting projectdesk-server")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}
	log.Info("server stopped")
	return nil
}

func logReport(r *collab.ReconcileReport) {
	log.WithFields(log.Fields{
		"completed": len(r.Completed),
		"aborted":   len(r.Aborted),
		"missing":   len(r.Missing),
		"orphans":   len(r.Orphans),
	}).Info("reconcile finished")
}
