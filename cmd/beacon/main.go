package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"station_watch/internal/config"
	"station_watch/internal/mailer"
	"station_watch/internal/publisher"
	"station_watch/internal/render"
	"station_watch/internal/scheduler"
	"station_watch/internal/service"
	"station_watch/internal/source/nrel"
	"station_watch/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize RabbitMQ
	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	// Initialize stores
	stationStore := postgres.NewStationStore(db)
	updateStore := postgres.NewUpdateStore(db)
	searchStore := postgres.NewSearchStore(db)
	resultStore := postgres.NewResultStore(db)
	notificationStore := postgres.NewNotificationStore(db)
	areaStore := postgres.NewAreaStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Initialize NREL source
	nrelSource := nrel.New(nrel.Config{
		BaseURL:        cfg.NREL.BaseURL,
		APIKey:         cfg.NREL.APIKey,
		Country:        cfg.NREL.Country,
		Timeout:        cfg.NREL.Timeout,
		MaxAttempts:    cfg.NREL.Retry.MaxAttempts,
		InitialBackoff: cfg.NREL.Retry.InitialBackoff,
		MaxBackoff:     cfg.NREL.Retry.MaxBackoff,
	}, logger)

	// Initialize services
	importer := service.NewImporter(stationStore, updateStore, txManager, rabbitMQ, logger)
	linker := service.NewLinker(stationStore, logger)
	syncer := service.NewSyncer(nrelSource, importer, linker, logger)
	matcher := service.NewMatcher(searchStore, resultStore, areaStore, logger)

	smtpMailer := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	}, logger)

	rollup := service.NewRollup(
		searchStore,
		resultStore,
		notificationStore,
		txManager,
		smtpMailer,
		logger,
		service.RollupConfig{
			Site: render.Site{
				Name:    cfg.Rollup.SiteName,
				BaseURL: cfg.Rollup.BaseURL,
			},
			MaxAttempts: cfg.SMTP.Retry.MaxAttempts,
			Backoff:     cfg.SMTP.Retry.InitialBackoff,
		},
	)

	consumer := publisher.NewConsumer(rabbitMQ, updateStore, matcher, logger)
	sched := scheduler.NewScheduler(
		syncer,
		rollup,
		cfg.Sync.Interval,
		cfg.Rollup.DailyInterval,
		cfg.Rollup.WeeklyInterval,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	go func() {
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("consumer error", "error", err)
			cancel()
		}
	}()

	logger.Info("starting station watcher",
		"source", nrelSource.Name(),
		"sync_interval", cfg.Sync.Interval,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
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
