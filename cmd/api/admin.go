package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
)

func newCreateAdminCommand() *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create the initial superuser account",
		Long:  `Create a superuser with every capability. The password is read from ADMIN_PASSWORD. Does nothing if the username is taken.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("ADMIN_PASSWORD")
			if len(password) < 8 {
				return errors.New("ADMIN_PASSWORD must be set to at least 8 characters")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.users.EnsureAdmin(cmd.Context(), username, email, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			log := logger.WithComponent("admin")
			if created {
				log.Info("admin account created", "username", username)
			} else {
				log.Info("admin account already exists", "username", username)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "admin", "Admin username")
	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	return cmd
}

func newExpireLicensesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-licenses",
		Short: "Mark active licenses past valid_until as expired",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.licenses.ExpireOverdue(cmd.Context())
			if err != nil {
				return fmt.Errorf("expire licenses: %w", err)
			}
			logger.WithComponent("license").Info("overdue licenses expired", "count", n)
			return nil
		},
	}
}
