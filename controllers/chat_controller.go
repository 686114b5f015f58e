package controllers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agroph/portal/chat"
	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

// ChatController exposes chat history and moderation over REST. Live traffic goes through the websocket.
type ChatController struct {
	db      *gorm.DB
	service *chat.Service
	log     *zap.Logger
}

// NewChatController creates a ChatController backed by the chat service.
func NewChatController(db *gorm.DB, service *chat.Service) *ChatController {
	return &ChatController{db: db, service: service, log: utils.Named("chat")}
}

// History returns the most recent messages, oldest first.
func (c *ChatController) History(ctx *gin.Context) {
	limit := chat.DefaultHistoryLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.Error(ctx, http.StatusBadRequest, 40050, "invalid limit")
			return
		}
		limit = n
	}
	messages, hasMore, err := c.service.History(ctx.Request.Context(), limit)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"messages": messages, "has_more": hasMore})
}

func (c *ChatController) unread(db *gorm.DB) *gorm.DB {
	return db.Model(&models.ChatMessage{}).
		Where("is_read = ? AND message_type = ?", false, models.MessageTypeUser)
}

// UnreadCount reports how many user messages an admin has not yet read.
func (c *ChatController) UnreadCount(ctx *gin.Context) {
	var n int64
	if err := c.unread(dbFor(c.db, ctx)).Count(&n).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"unread_count": n})
}

// MarkRead flags the listed messages, or all of them when "all" is set, as read.
func (c *ChatController) MarkRead(ctx *gin.Context) {
	var req struct {
		MessageIDs []uint `json:"message_ids"`
		All        bool   `json:"all"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}
	if !req.All && len(req.MessageIDs) == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40051, "message_ids is required")
		return
	}

	q := c.unread(dbFor(c.db, ctx))
	if !req.All {
		q = q.Where("id IN ?", req.MessageIDs)
	}
	res := q.UpdateColumn("is_read", true)
	if res.Error != nil {
		utils.Fail(ctx, res.Error)
		return
	}
	utils.Success(ctx, gin.H{"updated": res.RowsAffected})
}

// DeleteMessage permanently removes one message. Connected clients are not notified.
func (c *ChatController) DeleteMessage(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	actorID, _ := getUserID(ctx)
	err := dbFor(c.db, ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.ChatMessage{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.NotFoundError("message not found")
		}
		return recordAudit(tx, actorID, "chat.delete", "chat_message", id, "")
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id, "deleted": true})
}

// Clear removes the whole chat history.
func (c *ChatController) Clear(ctx *gin.Context) {
	actorID, _ := getUserID(ctx)
	var removed int64
	err := dbFor(c.db, ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ChatMessage{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return recordAudit(tx, actorID, "chat.clear", "chat_message", 0, fmt.Sprintf("%d messages", removed))
	})
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	c.log.Warn("chat history cleared", zap.Uint("actor_id", actorID), zap.Int64("removed", removed))
	utils.Success(ctx, gin.H{"deleted": removed})
}

// Export streams the full history as a CSV attachment.
func (c *ChatController) Export(ctx *gin.Context) {
	rows, err := dbFor(c.db, ctx).Model(&models.ChatMessage{}).
		Order("created_at ASC").Order("id ASC").Rows()
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	defer rows.Close()

	filename := fmt.Sprintf("chat-export-%s.csv", time.Now().Format("2006-01-02"))
	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	ctx.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	ctx.Status(http.StatusOK)

	w := csv.NewWriter(ctx.Writer)
	_ = w.Write([]string{"id", "created_at", "username", "message_type", "message", "is_read"})
	db := c.db.WithContext(ctx.Request.Context())
	for rows.Next() {
		var m models.ChatMessage
		if err := db.ScanRows(rows, &m); err != nil {
			c.log.Error("chat export scan failed", zap.Error(err))
			break
		}
		_ = w.Write([]string{
			strconv.FormatUint(uint64(m.ID), 10),
			m.CreatedAt.UTC().Format(time.RFC3339),
			m.Username,
			m.MessageType,
			m.Message,
			strconv.FormatBool(m.IsRead),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		c.log.Warn("chat export write failed", zap.Error(err))
	}
}

// Stats summarises chat volume with a per-day breakdown of the last week.
func (c *ChatController) Stats(ctx *gin.Context) {
	db := dbFor(c.db, ctx)
	all := db.Model(&models.ChatMessage{}).Session(&gorm.Session{})
	now := time.Now()

	var total, userMsgs, adminMsgs, unread, today int64
	counts := []struct {
		q   *gorm.DB
		out *int64
	}{
		{all, &total},
		{all.Where("message_type = ?", models.MessageTypeUser), &userMsgs},
		{all.Where("message_type = ?", models.MessageTypeAdmin), &adminMsgs},
		{c.unread(db), &unread},
		{all.Where("created_at >= ?", now.Add(-24*time.Hour)), &today},
	}
	for _, item := range counts {
		if err := item.q.Count(item.out).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
	}

	var stamps []time.Time
	if err := all.Where("created_at >= ?", now.AddDate(0, 0, -7)).Pluck("created_at", &stamps).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	perDay := map[string]int64{}
	for _, ts := range stamps {
		perDay[ts.In(time.Local).Format("2006-01-02")]++
	}
	activity := make([]gin.H, 0, 8)
	for d := 0; d <= 7; d++ {
		day := now.AddDate(0, 0, -d).Format("2006-01-02")
		if n, ok := perDay[day]; ok {
			activity = append(activity, gin.H{"date": day, "message_count": n})
		}
	}

	utils.Success(ctx, gin.H{
		"overview": gin.H{
			"total_messages":  total,
			"user_messages":   userMsgs,
			"admin_messages":  adminMsgs,
			"unread_messages": unread,
			"messages_today":  today,
		},
		"recent_activity": activity,
	})
}
