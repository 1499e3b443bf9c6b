package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "odoo-admin",
		Short:        "Odoo SaaS admin service",
		Long:         `Backend of the Odoo SaaS admin console: customers, environments, licenses and operator accounts.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newCreateAdminCommand(),
		newExpireLicensesCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
