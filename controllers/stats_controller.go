package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

// StatsController provides public portal statistics.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// pageViewsOn sums the page views recorded for the local calendar day containing t.
func pageViewsOn(db *gorm.DB, t time.Time) (int64, error) {
	local := t.In(time.Local)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	var total int64
	err := db.Model(&models.PageView{}).
		Where("date >= ? AND date < ?", start, start.Add(24*time.Hour)).
		Select("COALESCE(SUM(count), 0)").
		Scan(&total).Error
	return total, err
}

// GetStats returns aggregate counts for the home page.
func (s *StatsController) GetStats(ctx *gin.Context) {
	db := dbFor(s.db, ctx)
	var userCount, documentCount, postCount, replyCount int64

	if err := db.Model(&models.User{}).Where("is_active = ?", true).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}
	if err := db.Model(&models.Document{}).Where("is_active = ?", true).Count(&documentCount).Error; err != nil {
		documentCount = 0
	}
	if err := db.Model(&models.ForumPost{}).Count(&postCount).Error; err != nil {
		postCount = 0
	}
	if err := db.Model(&models.ForumReply{}).Count(&replyCount).Error; err != nil {
		replyCount = 0
	}
	pageViews, err := pageViewsOn(db, time.Now())
	if err != nil {
		pageViews = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":       userCount,
		"document_count":   documentCount,
		"post_count":       postCount,
		"reply_count":      replyCount,
		"page_views_today": pageViews,
	})
}
