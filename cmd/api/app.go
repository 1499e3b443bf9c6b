package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/config"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/db"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/repository"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/service"
)

// app is the wired service graph shared by every command.
type app struct {
	cfg  *config.Config
	pool *pgxpool.Pool

	customers    *service.CustomerService
	environments *service.EnvironmentService
	licenses     *service.LicenseService
	users        *service.UserService
	system       *service.SystemService
}

// loadConfig reads and validates configuration and installs the logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.Init(cfg.Log)
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.EnsureSchema(ctx, pool, cfg.Database.Schema); err != nil {
		pool.Close()
		return nil, err
	}

	tx := repository.NewTxManager(pool)
	customerRepo := repository.NewCustomerRepository(pool)
	licenseRepo := repository.NewLicenseRepository(pool)
	activityRepo := repository.NewActivityLogRepository(pool)

	environments := service.NewEnvironmentService(tx, repository.NewEnvironmentRepository(pool),
		repository.NewEnvironmentLogRepository(pool), customerRepo, activityRepo)
	licenses := service.NewLicenseService(tx, licenseRepo,
		repository.NewLicenseUsageRepository(pool), repository.NewLicenseLogRepository(pool),
		customerRepo, activityRepo)
	users := service.NewUserService(tx, repository.NewUserRepository(pool), activityRepo,
		cfg.JWT.SecretKey, cfg.SessionTimeout())

	return &app{
		cfg:          cfg,
		pool:         pool,
		customers:    service.NewCustomerService(tx, customerRepo, licenseRepo, activityRepo),
		environments: environments,
		licenses:     licenses,
		users:        users,
		system:       service.NewSystemService(cfg.Site, pool, tx, activityRepo),
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}
