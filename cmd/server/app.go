package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vedran77/dmcore/internal/config"
	"github.com/vedran77/dmcore/internal/database"
	"github.com/vedran77/dmcore/internal/directory"
	"github.com/vedran77/dmcore/internal/email"
	"github.com/vedran77/dmcore/internal/logger"
	"github.com/vedran77/dmcore/internal/notification"
	postgresrepo "github.com/vedran77/dmcore/internal/repository/postgres"
)

// app holds what every subcommand needs: config, logger and the database pool.
type app struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "load config")
	}
	log, err := logger.New(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build logger")
	}
	return cfg, log, nil
}

func bootstrap(ctx context.Context) (*app, func(), error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	log.Info("connected to database", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))

	cleanup := func() {
		pool.Close()
		log.Sync()
	}
	return &app{cfg: cfg, log: log, pool: pool}, cleanup, nil
}

func (a *app) directory() directory.Client {
	return directory.Safe(postgresrepo.NewUserDirectory(a.pool), a.log)
}

func (a *app) emailClient() email.Client {
	if a.cfg.MailgunEnabled() {
		return email.NewMailgun(a.cfg, a.log)
	}
	a.log.Warn("mailgun not configured, emails will only be logged")
	return email.NewNoop(a.log)
}

func (a *app) digest(dir directory.Client, mail email.Client) *notification.Digest {
	return notification.NewDigest(postgresrepo.NewMessageRepo(a.pool), dir, mail, a.cfg.DigestConcurrency, a.log)
}
