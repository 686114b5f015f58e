package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

var announcementTypes = map[string]string{
	"info":    "fas fa-info-circle",
	"success": "fas fa-check-circle",
	"warning": "fas fa-exclamation-triangle",
	"danger":  "fas fa-exclamation-circle",
}

// AnnouncementController serves home page notices and their admin management.
type AnnouncementController struct {
	db *gorm.DB
}

// NewAnnouncementController creates a new AnnouncementController instance.
func NewAnnouncementController(db *gorm.DB) *AnnouncementController {
	return &AnnouncementController{db: db}
}

// ListActive returns the announcements currently shown to visitors.
func (a *AnnouncementController) ListActive(ctx *gin.Context) {
	const cacheKey = utils.CacheKeyAnnouncements + "active"
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	var items []models.Announcement
	if err := dbFor(a.db, ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}

	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: items}, 5*time.Minute)
	utils.Success(ctx, items)
}

// ListAll returns every non-deleted announcement with its creator (admin only).
func (a *AnnouncementController) ListAll(ctx *gin.Context) {
	var items []models.Announcement
	if err := dbFor(a.db, ctx).Preload("Creator").
		Order("created_at DESC").Order("id DESC").
		Find(&items).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, items)
}

// Create publishes a new announcement (admin only).
func (a *AnnouncementController) Create(ctx *gin.Context) {
	var req struct {
		Title   string `json:"title" binding:"required,max=255"`
		Content string `json:"content" binding:"required"`
		Type    string `json:"type"`
		Icon    string `json:"icon"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40070, "title and content are required")
		return
	}
	title := utils.StripTags(strings.TrimSpace(req.Title))
	content := strings.TrimSpace(utils.Sanitize(req.Content))
	if title == "" || content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40070, "title and content are required")
		return
	}
	kind := strings.TrimSpace(req.Type)
	if kind == "" {
		kind = "info"
	}
	defaultIcon, ok := announcementTypes[kind]
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40071, "invalid announcement type")
		return
	}
	icon := utils.StripTags(strings.TrimSpace(req.Icon))
	if icon == "" {
		icon = defaultIcon
	}

	userID, _ := getUserID(ctx)
	item := models.Announcement{
		Title:     title,
		Content:   content,
		Type:      kind,
		Icon:      icon,
		IsActive:  true,
		CreatedBy: &userID,
	}
	err := dbFor(a.db, ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		return recordAudit(tx, userID, "announcement.create", "announcement", item.ID, title)
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.InvalidateByPrefix(utils.CacheKeyAnnouncements)
	utils.Created(ctx, item)
}

// Update edits an announcement; absent fields are left unchanged (admin only).
func (a *AnnouncementController) Update(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Title    *string `json:"title"`
		Content  *string `json:"content"`
		Type     *string `json:"type"`
		Icon     *string `json:"icon"`
		IsActive *bool   `json:"is_active"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := utils.StripTags(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40070, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Content != nil {
		content := strings.TrimSpace(utils.Sanitize(*req.Content))
		if content == "" {
			utils.Error(ctx, http.StatusBadRequest, 40070, "content cannot be empty")
			return
		}
		updates["content"] = content
	}
	if req.Type != nil {
		if _, ok := announcementTypes[*req.Type]; !ok {
			utils.Error(ctx, http.StatusBadRequest, 40071, "invalid announcement type")
			return
		}
		updates["type"] = *req.Type
	}
	if req.Icon != nil {
		updates["icon"] = utils.StripTags(strings.TrimSpace(*req.Icon))
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	userID, _ := getUserID(ctx)
	var item models.Announcement
	err := dbFor(a.db, ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&item).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.First(&item, id).Error; err != nil {
			return err
		}
		return recordAudit(tx, userID, "announcement.update", "announcement", id, item.Title)
	})
	if err != nil {
		failDB(ctx, err, "announcement not found")
		return
	}
	utils.InvalidateByPrefix(utils.CacheKeyAnnouncements)
	utils.Success(ctx, item)
}

// Delete soft-deletes an announcement (admin only).
func (a *AnnouncementController) Delete(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	userID, _ := getUserID(ctx)
	err := dbFor(a.db, ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Announcement{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return recordAudit(tx, userID, "announcement.delete", "announcement", id, "")
	})
	if err != nil {
		failDB(ctx, err, "announcement not found")
		return
	}
	utils.InvalidateByPrefix(utils.CacheKeyAnnouncements)
	utils.Success(ctx, gin.H{"id": id, "deleted": true})
}
