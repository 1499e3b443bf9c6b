package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/config"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/db"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := migrationConfig()
			if err != nil {
				return err
			}
			if err := db.MigrateDown(cfg.Database.DSN(), steps); err != nil {
				return err
			}
			logger.WithComponent("migrate").Info("migrations rolled back", "steps", steps)
			return nil
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := migrationConfig()
				if err != nil {
					return err
				}
				if err := db.MigrateUp(cfg.Database.DSN()); err != nil {
					return err
				}
				logger.WithComponent("migrate").Info("migrations applied")
				return nil
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := migrationConfig()
				if err != nil {
					return err
				}
				version, dirty, err := db.MigrationVersion(cfg.Database.DSN())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d, dirty: %v\n", version, dirty)
				return nil
			},
		},
	)
	return cmd
}

// migrationConfig skips secret validation; migrations only need the database.
func migrationConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log)
	return cfg, nil
}
