package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/config"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/db"
	apihttp "github.com/wenwu/saas-platform/odoo-admin-service/internal/http"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/policy"
)

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply pending migrations before serving")
	return cmd
}

func runServe(ctx context.Context, migrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		if err := db.MigrateUp(cfg.Database.DSN()); err != nil {
			return err
		}
		log.Info("database migrations applied")
	}

	ev, err := policy.NewEvaluator()
	if err != nil {
		return err
	}

	limits, closeLimits, err := newLimiters(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimits()

	handler := apihttp.NewHandler(a.customers, a.environments, a.licenses, a.users, a.system, cfg.Site.LogRetentionDays)
	server, err := apihttp.NewServer(cfg, handler, apihttp.NewDBAdminHandler(a.pool, cfg.Database.Schema), ev, limits)
	if err != nil {
		return err
	}

	addr := ":" + cfg.Server.Port
	log.Info("server starting", "addr", addr, "maintenance", cfg.Site.MaintenanceMode)
	if err := server.Run(ctx, addr); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// newLimiters builds the login and validation limiters on the configured
// backend.
func newLimiters(ctx context.Context, cfg *config.Config) (apihttp.Limiters, func(), error) {
	rl := cfg.RateLimit
	window := rl.RateWindow()

	if rl.Backend != "redis" {
		return apihttp.Limiters{
			Login:    apihttp.NewMemoryLimiter(rl.LoginLimit, window),
			Validate: apihttp.NewMemoryLimiter(rl.ValidateLimit, window),
		}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return apihttp.Limiters{}, nil, fmt.Errorf("connect redis: %w", err)
	}
	return apihttp.Limiters{
		Login:    apihttp.NewRedisLimiter(client, "login", rl.LoginLimit, window),
		Validate: apihttp.NewRedisLimiter(client, "license_validate", rl.ValidateLimit, window),
	}, func() { _ = client.Close() }, nil
}
