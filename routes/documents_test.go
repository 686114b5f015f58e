package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

func (a *testApp) uploadForm(t *testing.T, token, filename string, content []byte, fields map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(content)
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(config.Get().UploadDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read upload dir: %v", err)
	}
	return len(entries)
}

func TestUploadOverLimitIsRejected(t *testing.T) {
	app := newTestAppWith(t, func(c *config.AppConfig) { c.MaxUploadSize = 1024 })
	_, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)

	for _, size := range []int{4 << 10, 2 << 20} {
		w, env := app.uploadForm(t, adminToken, "ledger.txt", bytes.Repeat([]byte("a"), size), nil)
		if w.Code != http.StatusRequestEntityTooLarge || env.Code != utils.CodeTooLarge {
			t.Fatalf("%d byte upload = %d code=%d", size, w.Code, env.Code)
		}
	}

	var docs int64
	app.db.Model(&models.Document{}).Count(&docs)
	if docs != 0 || blobCount(t) != 0 {
		t.Fatalf("rejected uploads left rows=%d blobs=%d", docs, blobCount(t))
	}

	if w, _ := app.uploadForm(t, adminToken, "small.txt", []byte("fits"), nil); w.Code != http.StatusCreated {
		t.Fatalf("upload under limit status = %d", w.Code)
	}
}

func TestFailedInsertRemovesBlob(t *testing.T) {
	app := newTestApp(t)
	_, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)

	err := app.db.Callback().Create().Before("gorm:create").Register("test:refuse_documents", func(db *gorm.DB) {
		if db.Statement.Table == "documents" {
			_ = db.AddError(errors.New("insert refused"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	w, _ := app.uploadForm(t, adminToken, "permit.pdf", []byte("%PDF-1.4"), map[string]string{"title": "Permit"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("upload status = %d body=%s", w.Code, w.Body.String())
	}
	if n := blobCount(t); n != 0 {
		t.Fatalf("blobs left after failed insert = %d", n)
	}
}

func TestDocumentCategoryCountsFollowWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	utils.SetRedis(rc)
	t.Cleanup(func() {
		utils.SetRedis(nil)
		rc.Close()
	})

	app := newTestApp(t)
	_, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)
	var category models.DocumentCategory
	if err := app.db.Where("name = ?", "Agriculture").First(&category).Error; err != nil {
		t.Fatalf("seeded category: %v", err)
	}

	countFor := func() int64 {
		t.Helper()
		w, env := app.do(t, http.MethodGet, "/api/documents/categories", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("categories status = %d", w.Code)
		}
		var cats []models.DocumentCategory
		decode(t, env.Data, &cats)
		for _, c := range cats {
			if c.ID == category.ID {
				return c.DocumentCount
			}
		}
		t.Fatalf("category %d missing", category.ID)
		return 0
	}

	if n := countFor(); n != 0 {
		t.Fatalf("initial count = %d", n)
	}
	if !mr.Exists(utils.CacheKeyDocCategories + "all") {
		t.Fatal("category listing was not cached")
	}

	w, env := app.uploadForm(t, adminToken, "rice.pdf", []byte("%PDF-1.4 rice"), map[string]string{
		"title": "Rice guide", "category_id": fmt.Sprint(category.ID),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body=%s", w.Code, w.Body.String())
	}
	var doc models.Document
	decode(t, env.Data, &doc)
	if n := countFor(); n != 1 {
		t.Fatalf("count after upload = %d, want 1", n)
	}

	if w, _ := app.do(t, http.MethodDelete, fmt.Sprintf("/api/documents/%d", doc.ID), adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if n := countFor(); n != 0 {
		t.Fatalf("count after delete = %d, want 0", n)
	}
}
