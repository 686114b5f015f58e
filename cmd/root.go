// Package cmd holds the portal's command line entry points.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agroph/portal/config"
)

var (
	flagPort        string
	flagDatabaseURL string
	flagLogLevel    string
)

var rootCmd = &cobra.Command{
	Use:           "agroph",
	Short:         "AgroPH civic portal server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPort, "port", "", "HTTP port (overrides APP_PORT)")
	rootCmd.PersistentFlags().StringVar(&flagDatabaseURL, "database-url", "", "database url (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd, migrateCmd, promoteCmd)
}

// Execute runs the root command. Without a subcommand it serves.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers command line flags over the file and environment configuration.
func loadConfig(cmd *cobra.Command) config.AppConfig {
	cfg := config.Load()
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.AppPort = flagPort
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL = flagDatabaseURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	config.Set(cfg)
	return config.Get()
}
