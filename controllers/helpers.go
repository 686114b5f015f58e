package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agroph/portal/middleware"
	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Pagination is the page metadata returned by list endpoints.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := defaultPageSize
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 {
		pageSize = min(s, maxPageSize)
	}
	return page, pageSize
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalCount:  total,
		HasNext:     page < pages,
		HasPrev:     page > 1,
	}
}

// parseID reads a positive numeric path parameter, answering 400 itself when invalid.
func parseID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "invalid id")
		return 0, false
	}
	return uint(id), true
}

// getUserID returns the authenticated caller id.
func getUserID(ctx *gin.Context) (uint, bool) {
	id := middleware.CurrentUserID(ctx)
	return id, id != 0
}

func isAdmin(ctx *gin.Context) bool {
	return middleware.IsAdmin(ctx)
}

// dbFor scopes a query to the request so a disconnecting client cancels it.
func dbFor(db *gorm.DB, ctx *gin.Context) *gorm.DB {
	return db.WithContext(ctx.Request.Context())
}

// failDB renders a database error, mapping missing rows to 404 with notFoundMsg.
func failDB(ctx *gin.Context, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, notFoundMsg)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		utils.Error(ctx, http.StatusConflict, utils.CodeConflict, "resource already exists")
	default:
		utils.Fail(ctx, err)
	}
}

func bindFailed(ctx *gin.Context, err error) {
	utils.Logger.Debug("request binding failed", zap.String("path", ctx.FullPath()), zap.Error(err))
	utils.Error(ctx, http.StatusBadRequest, utils.CodeValidation, "invalid request payload")
}

// parseBool reports the value and whether s was a valid boolean.
func parseBool(s string) (bool, bool) {
	b, err := strconv.ParseBool(s)
	return b, err == nil
}

func currentClaims(ctx *gin.Context) (*utils.Claims, bool) {
	return middleware.CurrentClaims(ctx)
}

// recordAudit appends a moderation record inside the caller's transaction.
func recordAudit(tx *gorm.DB, actorID uint, action, targetType string, targetID uint, detail string) error {
	entry := models.AuditLog{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	}
	if actorID != 0 {
		entry.ActorID = &actorID
	}
	return tx.Create(&entry).Error
}
