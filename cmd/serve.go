package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/routes"
	"github.com/agroph/portal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		return err
	}
	defer utils.Logger.Sync() //nolint:errcheck

	db := config.InitDatabase()
	app, err := routes.SetupRouter(db)
	if err != nil {
		return err
	}

	// Background cleanup for blobs without a document row (best-effort)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	app.Sweeper.Start(sweepCtx)

	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	utils.Logger.Info("starting server",
		zap.String("port", cfg.AppPort),
		zap.String("env", cfg.AppEnv),
		zap.Bool("weather", cfg.WeatherEnabled()),
	)
	if err := utils.GraceServer(":"+cfg.AppPort, app.Engine, stopSweeper, app.Shutdown, utils.CloseRedis, closeDB); err != nil {
		utils.Logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	utils.Logger.Info("server stopped")
	return nil
}
