package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

// ForumController manages forum threads, replies and moderation.
type ForumController struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewForumController creates a new ForumController instance.
func NewForumController(db *gorm.DB) *ForumController {
	return &ForumController{db: db, log: utils.Named("forum")}
}

// CreatePost allows authenticated users to open a new thread.
func (f *ForumController) CreatePost(ctx *gin.Context) {
	var req struct {
		Title      string `json:"title" binding:"required,max=255"`
		Content    string `json:"content" binding:"required"`
		CategoryID *uint  `json:"category_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}

	title := utils.StripTags(strings.TrimSpace(req.Title))
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}
	content := strings.TrimSpace(utils.Sanitize(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40022, "content cannot be empty")
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	db := dbFor(f.db, ctx)
	if req.CategoryID != nil {
		var count int64
		if err := db.Model(&models.ForumCategory{}).Where("id = ?", *req.CategoryID).Count(&count).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
		if count == 0 {
			utils.Error(ctx, http.StatusBadRequest, 40023, "invalid category")
			return
		}
	}

	post := models.ForumPost{
		Title:      title,
		Content:    content,
		AuthorID:   &userID,
		CategoryID: req.CategoryID,
	}
	if err := db.Create(&post).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.InvalidateByPrefix(utils.CacheKeyForumCategories)

	if err := db.Preload("Author").Preload("Category").First(&post, post.ID).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Created(ctx, post)
}

// ListPosts returns threads with pinned ones first, then by latest activity.
func (f *ForumController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("limit"))

	query := dbFor(f.db, ctx).Model(&models.ForumPost{})
	if search := strings.ToLower(strings.TrimSpace(ctx.Query("search"))); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(content) LIKE ?", like, like)
	}
	if category := strings.TrimSpace(ctx.Query("category")); category != "" {
		if cid, err := strconv.ParseUint(category, 10, 64); err == nil {
			query = query.Where("category_id = ?", cid)
		} else {
			sub := f.db.Model(&models.ForumCategory{}).Select("id").Where("LOWER(name) = ?", strings.ToLower(category))
			query = query.Where("category_id IN (?)", sub)
		}
	}
	if raw := ctx.Query("pinned"); raw != "" {
		pinned, ok := parseBool(raw)
		if !ok {
			utils.Error(ctx, http.StatusBadRequest, 40024, "invalid pinned flag")
			return
		}
		query = query.Where("is_pinned = ?", pinned)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}

	var posts []models.ForumPost
	err := query.
		Preload("Author").Preload("Category").Preload("LastReplier").
		Order("is_pinned DESC").
		Order("COALESCE(last_reply_at, created_at) DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{
		"posts":      posts,
		"pagination": newPagination(page, pageSize, total),
	})
}

// GetPost counts a view and returns the thread with its replies in posting order.
func (f *ForumController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	db := dbFor(f.db, ctx)

	res := db.Model(&models.ForumPost{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		utils.Fail(ctx, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40420, "post not found")
		return
	}

	var post models.ForumPost
	err := db.
		Preload("Author").Preload("Category").Preload("LastReplier").
		Preload("Replies", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Replies.Author").
		First(&post, id).Error
	if err != nil {
		failDB(ctx, err, "post not found")
		return
	}
	utils.Success(ctx, post)
}

// UpdatePost edits a thread; only its author or an admin may do so.
func (f *ForumController) UpdatePost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Title      *string `json:"title"`
		Content    *string `json:"content"`
		CategoryID *uint   `json:"category_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}

	db := dbFor(f.db, ctx)
	var post models.ForumPost
	if err := db.First(&post, id).Error; err != nil {
		failDB(ctx, err, "post not found")
		return
	}
	if !f.canModify(ctx, post.AuthorID) {
		utils.Error(ctx, http.StatusForbidden, 40320, "you can only edit your own posts")
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := utils.StripTags(strings.TrimSpace(*req.Title))
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Content != nil {
		content := strings.TrimSpace(utils.Sanitize(*req.Content))
		if content == "" {
			utils.Error(ctx, http.StatusBadRequest, 40022, "content cannot be empty")
			return
		}
		updates["content"] = content
	}
	if req.CategoryID != nil {
		var count int64
		if err := db.Model(&models.ForumCategory{}).Where("id = ?", *req.CategoryID).Count(&count).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
		if count == 0 {
			utils.Error(ctx, http.StatusBadRequest, 40023, "invalid category")
			return
		}
		updates["category_id"] = *req.CategoryID
	}

	if len(updates) > 0 {
		if err := db.Model(&post).Updates(updates).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
		if _, moved := updates["category_id"]; moved {
			utils.InvalidateByPrefix(utils.CacheKeyForumCategories)
		}
	}
	if err := db.Preload("Author").Preload("Category").First(&post, id).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, post)
}

// DeletePost soft-deletes a thread together with its replies.
func (f *ForumController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	db := dbFor(f.db, ctx)

	var post models.ForumPost
	if err := db.Select("id", "author_id", "title").First(&post, id).Error; err != nil {
		failDB(ctx, err, "post not found")
		return
	}
	if !f.canModify(ctx, post.AuthorID) {
		utils.Error(ctx, http.StatusForbidden, 40321, "you can only delete your own posts")
		return
	}

	actorID, _ := getUserID(ctx)
	moderated := post.AuthorID == nil || *post.AuthorID != actorID
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.ForumReply{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.ForumPost{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NotFoundError("post not found")
		}
		if moderated {
			return recordAudit(tx, actorID, "post.delete", "forum_post", id, post.Title)
		}
		return nil
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.InvalidateByPrefix(utils.CacheKeyForumCategories)
	utils.Success(ctx, gin.H{"id": id, "deleted": true})
}

// CreateReply adds a reply and bumps the thread counters in one transaction.
func (f *ForumController) CreateReply(ctx *gin.Context) {
	postID, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Content       string `json:"content" binding:"required"`
		ParentReplyID *uint  `json:"parent_reply_id"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}
	content := strings.TrimSpace(utils.Sanitize(req.Content))
	if content == "" {
		utils.Error(ctx, http.StatusBadRequest, 40025, "reply cannot be empty")
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	reply := models.ForumReply{
		PostID:        postID,
		AuthorID:      &userID,
		Content:       content,
		ParentReplyID: req.ParentReplyID,
	}
	now := time.Now()
	db := dbFor(f.db, ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ForumPost{}).
			Where("id = ? AND is_locked = ?", postID, false).
			UpdateColumns(map[string]interface{}{
				"reply_count":   gorm.Expr("reply_count + ?", 1),
				"last_reply_at": now,
				"last_reply_by": userID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var existing models.ForumPost
			if err := tx.Select("id", "is_locked").First(&existing, postID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return utils.NotFoundError("post not found")
				}
				return err
			}
			return utils.AuthorizationError("post is locked")
		}

		if req.ParentReplyID != nil {
			var parents int64
			if err := tx.Model(&models.ForumReply{}).
				Where("id = ? AND post_id = ?", *req.ParentReplyID, postID).
				Count(&parents).Error; err != nil {
				return err
			}
			if parents == 0 {
				return utils.ValidationError("parent reply does not belong to this post")
			}
		}
		return tx.Create(&reply).Error
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	if err := db.Preload("Author").First(&reply, reply.ID).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Created(ctx, reply)
}

// DeleteReply soft-deletes a single reply and decrements the thread counter.
func (f *ForumController) DeleteReply(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	db := dbFor(f.db, ctx)

	var reply models.ForumReply
	if err := db.Select("id", "post_id", "author_id").First(&reply, id).Error; err != nil {
		failDB(ctx, err, "reply not found")
		return
	}
	if !f.canModify(ctx, reply.AuthorID) {
		utils.Error(ctx, http.StatusForbidden, 40322, "you can only delete your own replies")
		return
	}

	actorID, _ := getUserID(ctx)
	moderated := reply.AuthorID == nil || *reply.AuthorID != actorID
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.ForumReply{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NotFoundError("reply not found")
		}
		if err := tx.Model(&models.ForumPost{}).
			Where("id = ? AND reply_count > 0", reply.PostID).
			UpdateColumn("reply_count", gorm.Expr("reply_count - ?", 1)).Error; err != nil {
			return err
		}
		if moderated {
			return recordAudit(tx, actorID, "reply.delete", "forum_reply", id, fmt.Sprintf("post %d", reply.PostID))
		}
		return nil
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id, "deleted": true})
}

// Pin sets or clears the pinned flag (admin only).
func (f *ForumController) Pin(ctx *gin.Context) {
	var req struct {
		IsPinned *bool `json:"is_pinned" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}
	f.setFlag(ctx, "is_pinned", *req.IsPinned, "post.pin", "post.unpin")
}

// Lock sets or clears the locked flag (admin only). Locked threads refuse new replies.
func (f *ForumController) Lock(ctx *gin.Context) {
	var req struct {
		IsLocked *bool `json:"is_locked" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}
	f.setFlag(ctx, "is_locked", *req.IsLocked, "post.lock", "post.unlock")
}

// setFlag flips a boolean moderation column. Writing the current value is a no-op without an audit entry.
func (f *ForumController) setFlag(ctx *gin.Context, column string, value bool, onAction, offAction string) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actorID, _ := getUserID(ctx)
	action := offAction
	if value {
		action = onAction
	}

	changed := false
	err := dbFor(f.db, ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ForumPost{}).
			Where("id = ?", id).
			Where(column+" <> ?", value).
			UpdateColumn(column, value)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ForumPost{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return utils.NotFoundError("post not found")
			}
			return nil
		}
		changed = true
		return recordAudit(tx, actorID, action, "forum_post", id, "")
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	if changed {
		f.log.Info("post moderated", zap.Uint("post_id", id), zap.String("action", action), zap.Uint("actor_id", actorID))
	}
	utils.Success(ctx, gin.H{"id": id, column: value, "changed": changed})
}

// Categories lists forum categories with post counts and the latest post date.
func (f *ForumController) Categories(ctx *gin.Context) {
	const cacheKey = utils.CacheKeyForumCategories + "all"
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	db := dbFor(f.db, ctx)
	var cats []models.ForumCategory
	if err := db.Order("name ASC").Find(&cats).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	for i := range cats {
		if err := db.Model(&models.ForumPost{}).Where("category_id = ?", cats[i].ID).Count(&cats[i].PostCount).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
		if cats[i].PostCount == 0 {
			continue
		}
		var latest []models.ForumPost
		if err := db.Select("id", "created_at").
			Where("category_id = ?", cats[i].ID).
			Order("created_at DESC").Limit(1).
			Find(&latest).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
		if len(latest) == 1 {
			at := latest[0].CreatedAt
			cats[i].LastPostDate = &at
		}
	}

	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: cats}, 5*time.Minute)
	utils.Success(ctx, cats)
}

func (f *ForumController) canModify(ctx *gin.Context, authorID *uint) bool {
	if isAdmin(ctx) {
		return true
	}
	userID, ok := getUserID(ctx)
	return ok && authorID != nil && *authorID == userID
}
