package middleware

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

// PageViewRecorder counts successful page loads per day and path.
// API calls, uploads, sockets and static assets are skipped.
func PageViewRecorder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != "GET" {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 400 {
			return
		}
		path := c.Request.URL.Path
		if !isPagePath(path) {
			return
		}

		now := time.Now()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": now}),
		}).Create(&models.PageView{Date: day, Path: path, Count: 1}).Error
		if err != nil {
			utils.Logger.Debug("page view upsert failed", zap.String("path", path), zap.Error(err))
		}
	}
}

func isPagePath(path string) bool {
	switch {
	case path == "/health", path == "/ws", strings.HasPrefix(path, "/health/"):
		return false
	case strings.HasPrefix(path, "/api/"), strings.HasPrefix(path, "/uploads/"):
		return false
	}
	ext := filepath.Ext(path)
	return ext == "" || ext == ".html"
}
