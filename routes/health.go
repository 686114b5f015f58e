package routes

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/utils"
	"github.com/agroph/portal/weather"
)

var bootTime = time.Now()

// healthHandler reports database reachability plus the optional features this process runs with.
func healthHandler(db *gorm.DB, cfg config.AppConfig, weatherService *weather.Service) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		now := time.Now().UTC().Format(time.RFC3339)
		if err := pingDatabase(ctx.Request.Context(), db, cfg.DBAcquireTimeout); err != nil {
			utils.Logger.Warn("health check: database unreachable: " + err.Error())
			ctx.JSON(http.StatusServiceUnavailable, utils.JSONResponse{
				Code:  utils.CodeUnavailable,
				Error: "database unavailable",
				Data: gin.H{
					"status":    "unhealthy",
					"timestamp": now,
					"database":  gin.H{"connected": false},
				},
			})
			return
		}
		utils.Success(ctx, gin.H{
			"status":    "ok",
			"timestamp": now,
			"database":  gin.H{"connected": true},
			"server": gin.H{
				"uptime_seconds": int64(time.Since(bootTime).Seconds()),
				"go_version":     runtime.Version(),
				"environment":    cfg.AppEnv,
			},
			"features": gin.H{
				"weather": weatherService.Enabled(),
				"redis":   utils.GetRedis() != nil,
				"oauth": gin.H{
					"github": cfg.GitHubClientID != "",
					"google": cfg.GoogleClientID != "",
				},
			},
		})
	}
}

func pingDatabase(parent context.Context, db *gorm.DB, timeout time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func ping(ctx *gin.Context) {
	utils.Success(ctx, gin.H{"message": "pong", "timestamp": time.Now().UTC().Format(time.RFC3339)})
}
