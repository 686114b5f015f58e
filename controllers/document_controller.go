package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/storage"
	"github.com/agroph/portal/utils"
)

// AllowedDocumentTypes is the upload allow-list by lowercase extension.
var AllowedDocumentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
	".rtf":  "application/rtf",
}

// DocumentController manages the document center.
type DocumentController struct {
	db      *gorm.DB
	store   *storage.DiskStore
	maxSize int64
	log     *zap.Logger
}

// NewDocumentController creates a DocumentController writing blobs to store.
func NewDocumentController(db *gorm.DB, store *storage.DiskStore, maxSize int64) *DocumentController {
	return &DocumentController{db: db, store: store, maxSize: maxSize, log: utils.Named("documents")}
}

// Upload stores a new document blob and its metadata row (admin only).
func (d *DocumentController) Upload(ctx *gin.Context) {
	userID, _ := getUserID(ctx)
	// leave room for the other multipart fields
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, d.maxSize+1<<20)

	file, header, err := ctx.Request.FormFile("document")
	if err != nil {
		file, header, err = ctx.Request.FormFile("file")
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			d.tooLarge(ctx)
			return
		}
		utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
		return
	}
	defer file.Close()

	if header.Size > d.maxSize {
		d.tooLarge(ctx)
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := AllowedDocumentTypes[ext]
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40031, "file type not allowed; use pdf, doc, docx, xls, xlsx, txt or rtf")
		return
	}

	originalName := filepath.Base(header.Filename)
	title := utils.StripTags(ctx.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(originalName, filepath.Ext(originalName))
	}
	categoryID, err := d.resolveCategory(ctx, fallback(ctx.PostForm("category_id"), ctx.PostForm("category")))
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	featured, _ := parseBool(ctx.PostForm("is_featured"))

	name := storage.NewName("document", ext)
	written, err := d.store.Save(name, io.LimitReader(file, d.maxSize+1))
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	if written > d.maxSize {
		_ = d.store.Remove(name)
		d.tooLarge(ctx)
		return
	}

	doc := models.Document{
		Title:       title,
		Description: utils.Sanitize(ctx.PostForm("description")),
		Filename:    originalName,
		FilePath:    name,
		FileSize:    written,
		FileType:    contentType,
		CategoryID:  categoryID,
		UploadedBy:  &userID,
		Tags:        models.JoinTags(strings.Split(ctx.PostForm("tags"), ",")),
		IsFeatured:  featured,
		IsActive:    true,
	}
	if err := dbFor(d.db, ctx).Create(&doc).Error; err != nil {
		// compensate so the blob does not outlive a failed insert
		if rmErr := d.store.Remove(name); rmErr != nil {
			d.log.Error("failed to remove blob after insert failure", zap.String("blob", name), zap.Error(rmErr))
		}
		utils.Fail(ctx, err)
		return
	}
	doc.TagList = models.SplitTags(doc.Tags)
	utils.InvalidateByPrefix(utils.CacheKeyDocCategories)

	d.log.Info("document uploaded", zap.Uint("id", doc.ID), zap.Uint("by", userID), zap.Int64("size", written))
	utils.Created(ctx, doc)
}

func (d *DocumentController) tooLarge(ctx *gin.Context) {
	utils.Error(ctx, http.StatusRequestEntityTooLarge, utils.CodeTooLarge,
		fmt.Sprintf("file too large (max %dMB)", d.maxSize>>20))
}

func (d *DocumentController) resolveCategory(ctx *gin.Context, raw string) (*uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, utils.ValidationError("invalid category")
	}
	var count int64
	if err := dbFor(d.db, ctx).Model(&models.DocumentCategory{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, utils.ValidationError("invalid category")
	}
	cid := uint(id)
	return &cid, nil
}

// List returns active documents filtered by search, category and featured flag.
// Admins may pass include_inactive=true.
func (d *DocumentController) List(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("limit"))

	query := dbFor(d.db, ctx).Model(&models.Document{})
	if inactive, _ := parseBool(ctx.Query("include_inactive")); !inactive || !isAdmin(ctx) {
		query = query.Where("is_active = ?", true)
	}
	if search := strings.ToLower(strings.TrimSpace(ctx.Query("search"))); search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags) LIKE ?", like, like, like)
	}
	if category := strings.TrimSpace(ctx.Query("category")); category != "" {
		cid, err := strconv.ParseUint(category, 10, 64)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40032, "invalid category")
			return
		}
		query = query.Where("category_id = ?", cid)
	}
	if featured, ok := parseBool(ctx.Query("featured")); ok {
		query = query.Where("is_featured = ?", featured)
	}

	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}

	var docs []models.Document
	err := query.Preload("Category").Preload("Uploader").
		Order("is_featured DESC").Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&docs).Error
	if err != nil {
		utils.Fail(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{
		"documents":  docs,
		"pagination": newPagination(page, pageSize, total),
	})
}

// Get returns a single active document.
func (d *DocumentController) Get(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var doc models.Document
	err := dbFor(d.db, ctx).Preload("Category").Preload("Uploader").
		Where("is_active = ?", true).First(&doc, id).Error
	if err != nil {
		failDB(ctx, err, "document not found")
		return
	}
	utils.Success(ctx, doc)
}

// Download streams the blob as an attachment and bumps the download counter.
func (d *DocumentController) Download(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	db := dbFor(d.db, ctx)
	var doc models.Document
	if err := db.Where("is_active = ?", true).First(&doc, id).Error; err != nil {
		failDB(ctx, err, "document not found")
		return
	}

	f, size, err := d.store.Open(doc.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "file not found on server")
			return
		}
		utils.Fail(ctx, err)
		return
	}
	defer f.Close()

	if err := db.Model(&models.Document{}).Where("id = ?", doc.ID).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1)).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}

	contentType := doc.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename})
	ctx.DataFromReader(http.StatusOK, size, contentType, f, map[string]string{
		"Content-Disposition": disposition,
	})
}

type documentUpdateRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	CategoryID  *uint     `json:"category_id"`
	Tags        *[]string `json:"tags"`
	IsFeatured  *bool     `json:"is_featured"`
}

// Update edits document metadata (admin only).
func (d *DocumentController) Update(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	var req documentUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindFailed(ctx, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := utils.StripTags(*req.Title)
		if title == "" {
			utils.Error(ctx, http.StatusBadRequest, 40033, "title cannot be empty")
			return
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = utils.Sanitize(*req.Description)
	}
	if req.CategoryID != nil {
		cid, err := d.resolveCategory(ctx, strconv.FormatUint(uint64(*req.CategoryID), 10))
		if err != nil {
			utils.Fail(ctx, err)
			return
		}
		updates["category_id"] = cid
	}
	if req.Tags != nil {
		updates["tags"] = models.JoinTags(*req.Tags)
	}
	if req.IsFeatured != nil {
		updates["is_featured"] = *req.IsFeatured
	}

	db := dbFor(d.db, ctx)
	var doc models.Document
	if err := db.Where("is_active = ?", true).First(&doc, id).Error; err != nil {
		failDB(ctx, err, "document not found")
		return
	}
	if len(updates) > 0 {
		if err := db.Model(&doc).Updates(updates).Error; err != nil {
			utils.Fail(ctx, err)
			return
		}
		utils.InvalidateByPrefix(utils.CacheKeyDocCategories)
	}
	if err := db.Preload("Category").Preload("Uploader").First(&doc, id).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, doc)
}

// Delete soft-deletes a document by clearing is_active (admin only). The blob is kept.
func (d *DocumentController) Delete(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")
	if !ok {
		return
	}
	res := dbFor(d.db, ctx).Model(&models.Document{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if res.Error != nil {
		utils.Fail(ctx, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, utils.CodeNotFound, "document not found")
		return
	}
	utils.InvalidateByPrefix(utils.CacheKeyDocCategories)
	utils.Success(ctx, gin.H{"message": "document deleted"})
}

// Categories lists document categories with their active document counts.
func (d *DocumentController) Categories(ctx *gin.Context) {
	const cacheKey = utils.CacheKeyDocCategories + "all"
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	db := dbFor(d.db, ctx)
	var cats []models.DocumentCategory
	if err := db.Order("name ASC").Find(&cats).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	var counts []struct {
		CategoryID uint
		N          int64
	}
	if err := db.Model(&models.Document{}).
		Select("category_id, COUNT(*) AS n").
		Where("is_active = ? AND category_id IS NOT NULL", true).
		Group("category_id").Scan(&counts).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	byID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byID[c.CategoryID] = c.N
	}
	for i := range cats {
		cats[i].DocumentCount = byID[cats[i].ID]
	}

	utils.CacheSetJSON(cacheKey, utils.JSONResponse{Code: 0, Message: "success", Data: cats}, 10*time.Minute)
	utils.Success(ctx, cats)
}

// Stats summarises the document center for the admin console.
func (d *DocumentController) Stats(ctx *gin.Context) {
	db := dbFor(d.db, ctx)
	active := db.Model(&models.Document{}).Where("is_active = ?", true).Session(&gorm.Session{})

	var total, featured, downloads int64
	if err := active.Count(&total).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	if err := active.Where("is_featured = ?", true).Count(&featured).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	if err := active.Select("COALESCE(SUM(download_count), 0)").Scan(&downloads).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}

	var top []models.Document
	if err := db.Where("is_active = ?", true).Order("download_count DESC").Order("id ASC").Limit(5).Find(&top).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}
	var recent []models.Document
	if err := db.Preload("Uploader").Where("is_active = ?", true).Order("created_at DESC").Order("id DESC").Limit(5).Find(&recent).Error; err != nil {
		utils.Fail(ctx, err)
		return
	}

	utils.Success(ctx, gin.H{
		"total_documents": total,
		"featured":        featured,
		"total_downloads": downloads,
		"top_downloaded":  top,
		"recent_uploads":  recent,
	})
}

// ReferencedBlobs reports which blob names still have a document row, active or not.
// It backs the orphan sweeper.
func (d *DocumentController) ReferencedBlobs(ctx context.Context, names []string) (map[string]bool, error) {
	var found []string
	if err := d.db.WithContext(ctx).Model(&models.Document{}).Where("file_path IN ?", names).Pluck("file_path", &found).Error; err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(found))
	for _, n := range found {
		out[n] = true
	}
	return out, nil
}
