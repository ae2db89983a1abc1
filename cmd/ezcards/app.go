package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/livefire2015/ez-cards/src/config"
	"github.com/livefire2015/ez-cards/src/events"
	"github.com/livefire2015/ez-cards/src/logging"
	"github.com/livefire2015/ez-cards/src/services"
	"github.com/livefire2015/ez-cards/src/store"
	"github.com/livefire2015/ez-cards/src/store/memory"
	"github.com/livefire2015/ez-cards/src/store/postgres"
)

// app bundles the runtime dependencies shared by the commands
type app struct {
	logger    *slog.Logger
	store     store.Store
	publisher events.Publisher
	svc       *services.Services
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := slog.Default()

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logging.Component(logger, logging.ComponentEvents))
		if err != nil {
			st.Close()
			return nil, err
		}
		publisher = amqpPublisher
		logger.Info("publishing events", "exchange", cfg.AMQP.Exchange)
	}

	svc := services.New(st, services.Options{
		Policy:    policy,
		Location:  cfg.Location(),
		Publisher: publisher,
		Logger:    logger,
	})

	return &app{logger: logger, store: st, publisher: publisher, svc: svc}, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	storageLogger := logging.Component(logger, logging.ComponentStorage)

	if cfg.Storage.Backend == config.BackendMemory {
		storageLogger.Warn("using the in-memory store; data is lost on exit")
		return memory.New(), nil
	}

	if cfg.Storage.AutoMigrate {
		if err := postgres.RunMigrations(cfg.Storage.DatabaseURL); err != nil {
			return nil, err
		}
		storageLogger.Info("migrations applied")
	}

	st, err := postgres.Open(ctx, cfg.Storage.DatabaseURL, postgres.Options{
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	storageLogger.Info("connected to postgres",
		"max_open_conns", cfg.Storage.MaxOpenConns)
	return st, nil
}

func (a *app) Close() error {
	return errors.Join(a.publisher.Close(), a.store.Close())
}
