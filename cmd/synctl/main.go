package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"content_syncer/internal/config"
	"content_syncer/internal/publisher"
	"content_syncer/internal/service"
	"content_syncer/internal/source/saas"
	"content_syncer/internal/storage/postgres"
	"content_syncer/internal/webhook"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "synctl",
		Short:         "Webhook delivery and article synchronization for content sites",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(
		newRunCmd(&configPath),
		newSyncArticlesCmd(&configPath),
		newCleanSyncedCmd(&configPath),
		newMarkSyncedCmd(&configPath),
		newSyncStatusCmd(&configPath),
		newSubscribersCmd(&configPath),
	)
	return root
}

// app bundles everything a command needs once the config is loaded and the
// database is reachable.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB

	articles    *postgres.ArticleStore
	categories  *postgres.CategoryStore
	syncRuns    *postgres.SyncRunStore
	subscribers *postgres.SubscriberStore
	deliveries  *postgres.DeliveryStore
	txManager   *postgres.TransactionManager
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return &app{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		articles:    postgres.NewArticleStore(db),
		categories:  postgres.NewCategoryStore(db),
		syncRuns:    postgres.NewSyncRunStore(db),
		subscribers: postgres.NewSubscriberStore(db),
		deliveries:  postgres.NewDeliveryStore(db),
		txManager:   postgres.NewTransactionManager(db),
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// syncConfig applies CLI overrides on top of the config file.
func (a *app) syncConfig(saasURL, apiKey string, siteID int64) service.SyncConfig {
	cfg := service.SyncConfig{
		SourceURL: a.cfg.SaaS.BaseURL,
		APIKey:    a.cfg.SaaS.APIKey,
		SiteID:    siteID,
	}
	if saasURL != "" {
		cfg.SourceURL = saasURL
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	return cfg
}

func (a *app) newGateway(cfg service.SyncConfig) *saas.Gateway {
	return saas.New(saas.Config{
		BaseURL:        cfg.SourceURL,
		APIKey:         cfg.APIKey,
		Timeout:        a.cfg.SaaS.Timeout,
		MaxAttempts:    a.cfg.SaaS.Retry.MaxAttempts,
		InitialBackoff: a.cfg.SaaS.Retry.InitialBackoff,
		MaxBackoff:     a.cfg.SaaS.Retry.MaxBackoff,
	}, a.logger)
}

func (a *app) newDispatcher() *webhook.Dispatcher {
	return webhook.NewDispatcher(a.subscribers, a.deliveries, webhook.Config{
		Timeout: a.cfg.Webhook.Timeout,
	}, a.logger)
}

func (a *app) newSyncService(cfg service.SyncConfig, pub service.Publisher) *service.SyncService {
	return service.NewSyncService(
		a.newGateway(cfg),
		a.articles,
		a.categories,
		a.syncRuns,
		a.txManager,
		pub,
		a.newDispatcher(),
		a.logger,
		cfg,
	)
}

func (a *app) newPublisher() (*publisher.RabbitMQ, error) {
	if !a.cfg.RabbitMQ.Enabled {
		return nil, nil
	}
	return publisher.NewRabbitMQ(publisher.Config{
		URL:        a.cfg.RabbitMQ.URL,
		Exchange:   a.cfg.RabbitMQ.Exchange,
		RoutingKey: a.cfg.RabbitMQ.RoutingKey,
		QueueName:  a.cfg.RabbitMQ.QueueName,
	}, a.logger)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
