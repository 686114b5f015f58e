package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema and seed default categories",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := loadConfig(cmd)
		if err := utils.InitLogger(cfg); err != nil {
			return err
		}
		conn, err := config.OpenDatabase(cfg)
		if err != nil {
			return err
		}
		if sqlDB, err := conn.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := config.Migrate(conn); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		utils.Logger.Info("migration complete")
		return nil
	},
}
