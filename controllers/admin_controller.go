package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

// AdminController serves the admin console: dashboard, user management and the audit log.
type AdminController struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// NewAdminController creates a new AdminController instance.
func NewAdminController(db *gorm.DB) *AdminController {
	return &AdminController{db: db, log: utils.Named("admin"), now: time.Now}
}

type countQuery struct {
	name string
	q    *gorm.DB
}

func runCounts(queries []countQuery) (gin.H, error) {
	out := gin.H{}
	for _, cq := range queries {
		var n int64
		if err := cq.q.Count(&n).Error; err != nil {
			return nil, err
		}
		out[cq.name] = n
	}
	return out, nil
}

// Dashboard aggregates counts across every area of the portal plus the latest activity.
func (a *AdminController) Dashboard(ctx *gin.Context) {
	db := dbFor(a.db, ctx)
	now := a.now()
	users := db.Model(&models.User{}).Session(&gorm.Session{})
	docs := db.Model(&models.Document{}).Where("is_active = ?", true).Session(&gorm.Session{})
	posts := db.Model(&models.ForumPost{}).Session(&gorm.Session{})
	msgs := db.Model(&models.ChatMessage{}).Session(&gorm.Session{})

	userStats, err := runCounts([]countQuery{
		{"total_users", users},
		{"active_users", users.Where("is_active = ?", true)},
		{"new_users_week", users.Where("created_at >= ?", now.AddDate(0, 0, -7))},
		{"new_users_month", users.Where("created_at >= ?", now.AddDate(0, 0, -30))},
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	docStats, err := runCounts([]countQuery{
		{"total_documents", docs},
		{"featured_documents", docs.Where("is_featured = ?", true)},
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	var downloads int64
	if err := docs.Select("COALESCE(SUM(download_count), 0)").Scan(&downloads).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	docStats["total_downloads"] = downloads

	forumStats, err := runCounts([]countQuery{
		{"total_posts", posts},
		{"total_replies", db.Model(&models.ForumReply{})},
		{"posts_today", posts.Where("created_at >= ?", now.Add(-24*time.Hour))},
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	chatStats, err := runCounts([]countQuery{
		{"total_messages", msgs},
		{"unread_messages", msgs.Where("is_read = ? AND message_type = ?", false, models.MessageTypeUser)},
		{"messages_today", msgs.Where("created_at >= ?", now.Add(-24*time.Hour))},
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	pageViews, err := pageViewsOn(db, now)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	var recentUsers []models.User
	if err := users.Order("created_at DESC").Limit(5).Find(&recentUsers).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	var recentDocs []models.Document
	if err := docs.Preload("Category").Order("created_at DESC").Limit(5).Find(&recentDocs).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	var recentPosts []models.ForumPost
	if err := posts.Preload("Author").Order("created_at DESC").Limit(5).Find(&recentPosts).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{
		"users":      userStats,
		"documents":  docStats,
		"forum":      forumStats,
		"chat":       chatStats,
		"page_views": gin.H{"today": pageViews},
		"recent": gin.H{
			"users":     recentUsers,
			"documents": recentDocs,
			"posts":     recentPosts,
		},
	})
}

// ListUsers returns accounts filtered by search and role.
func (a *AdminController) ListUsers(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("limit"))

	query := dbFor(a.db, ctx).Model(&models.User{})
	if search := strings.ToLower(strings.TrimSpace(ctx.Query("search"))); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(email) LIKE ? OR LOWER(display_name) LIKE ? OR LOWER(username) LIKE ?", like, like, like)
	}
	if role := strings.TrimSpace(ctx.Query("role")); role != "" {
		if role != models.RoleUser && role != models.RoleAdmin {
			utils.Error(ctx, http.StatusBadRequest, 40060, "invalid role")
			return
		}
		query = query.Where("role = ?", role)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	var users []models.User
	if err := query.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&users).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"users":      users,
		"pagination": newPagination(page, pageSize, total),
	})
}

// UpdateUserStatus enables or disables an account.
func (a *AdminController) UpdateUserStatus(ctx *gin.Context) {
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}
	action := "user.disable"
	if *req.IsActive {
		action = "user.enable"
	}
	a.updateUser(ctx, "is_active", *req.IsActive, action)
}

// UpdateUserRole promotes or demotes an account.
func (a *AdminController) UpdateUserRole(ctx *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required,oneof=user admin"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid role")
		return
	}
	a.updateUser(ctx, "role", req.Role, "user.role")
}

// updateUser changes one column on another user's account and audits it when the value moved.
func (a *AdminController) updateUser(ctx *gin.Context, column string, value interface{}, action string) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actorID, _ := getUserID(ctx)
	if id == actorID {
		utils.Error(ctx, http.StatusBadRequest, 40061, "you cannot change your own account")
		return
	}

	var user models.User
	err := dbFor(a.db, ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ?", id).
			Where(column+" <> ?", value).
			Updates(map[string]interface{}{column: value})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&user, id).Error; err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return recordAudit(tx, actorID, action, "user", id, column+"="+stringify(value))
	})
	if err != nil {
		failDB(ctx, err, "user not found")
		return
	}
	utils.Success(ctx, user)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case string:
		return t
	default:
		return ""
	}
}

// Logs returns the audit log, newest first.
func (a *AdminController) Logs(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("limit"))

	query := dbFor(a.db, ctx).Model(&models.AuditLog{})
	if action := strings.TrimSpace(ctx.Query("action")); action != "" {
		query = query.Where("action = ?", action)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	var logs []models.AuditLog
	if err := query.Preload("Actor").
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&logs).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{
		"logs":       logs,
		"pagination": newPagination(page, pageSize, total),
	})
}
