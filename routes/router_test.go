package routes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

type testApp struct {
	db     *gorm.DB
	engine *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWith(t, nil)
}

// newTestAppWith lets a test adjust the configuration before the database and router are built.
func newTestAppWith(t *testing.T, tune func(*config.AppConfig)) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	cfg := config.AppConfig{
		AppEnv:             "test",
		JWTSecret:          "routes-secret",
		DatabaseURL:        "sqlite://" + filepath.Join(dir, "portal.db"),
		UploadDir:          filepath.Join(dir, "uploads"),
		StaticDir:          dir,
		GinMode:            "test",
		GinPath:            filepath.Join(dir, "logs", "gin.log"),
		LogLevel:           "silent",
		RateLimitPerMinute: 100000,
	}
	if tune != nil {
		tune(&cfg)
	}
	config.Set(cfg)
	db, err := config.OpenDatabase(config.Get())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	app, err := SetupRouter(db)
	if err != nil {
		t.Fatalf("setup router: %v", err)
	}
	t.Cleanup(app.Shutdown)
	return &testApp{db: db, engine: app.Engine}
}

// newUser inserts an account directly and returns it with a session token.
func (a *testApp) newUser(t *testing.T, email, role string) (models.User, string) {
	t.Helper()
	user := models.User{Email: email, DisplayName: strings.Split(email, "@")[0], Role: role, IsActive: true}
	if err := a.db.Create(&user).Error; err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	token, err := utils.GenerateToken(user.ID, user.Role, user.DisplayName, 0)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return user, token
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode envelope: %v (%s)", method, path, err, w.Body.String())
		}
	}
	return w, env
}

func decode(t *testing.T, raw json.RawMessage, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, string(raw))
	}
}

func (a *testApp) upload(t *testing.T, token, filename string, content []byte) models.Document {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(content)
	_ = mw.WriteField("title", "Barangay Business Permit")
	_ = mw.WriteField("tags", "permit, business")
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d body=%s", w.Code, w.Body.String())
	}
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	var doc models.Document
	decode(t, env.Data, &doc)
	return doc
}

func TestRegisterThenLogin(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "ana@example.com", "password": "secret123", "display_name": "Ana",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", w.Code, w.Body.String())
	}
	var reg struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(t, env.Data, &reg)
	if reg.Token == "" || reg.User.ID == 0 {
		t.Fatalf("register returned %+v", reg)
	}

	w, env = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "secret123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", w.Code, w.Body.String())
	}
	var login struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(t, env.Data, &login)
	if login.User.ID != reg.User.ID {
		t.Fatalf("login user id = %d, want %d", login.User.ID, reg.User.ID)
	}

	w, env = app.do(t, http.MethodGet, "/api/auth/verify", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d", w.Code)
	}
	var verified struct {
		User struct {
			ID          uint   `json:"id"`
			Role        string `json:"role"`
			DisplayName string `json:"display_name"`
		} `json:"user"`
	}
	decode(t, env.Data, &verified)
	if verified.User.Role != models.RoleUser || verified.User.DisplayName != "Ana" {
		t.Fatalf("verified claims = %+v", verified.User)
	}

	w, _ = app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "wrong-pass"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", w.Code)
	}
}

func TestDuplicateEmailConflicts(t *testing.T) {
	app := newTestApp(t)
	body := gin.H{"email": "ana@example.com", "password": "secret123", "display_name": "Ana"}

	if w, _ := app.do(t, http.MethodPost, "/api/auth/register", "", body); w.Code != http.StatusCreated {
		t.Fatalf("first register status = %d", w.Code)
	}
	body["email"] = "ANA@example.com"
	w, env := app.do(t, http.MethodPost, "/api/auth/register", "", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", w.Code)
	}
	if env.Code != 40901 {
		t.Fatalf("duplicate code = %d", env.Code)
	}

	var count int64
	app.db.Model(&models.User{}).Where("email = ?", "ana@example.com").Count(&count)
	if count != 1 {
		t.Fatalf("users with email = %d, want 1", count)
	}
}

func TestDocumentSearchIsAnonymousAndFiltered(t *testing.T) {
	app := newTestApp(t)
	docs := []models.Document{
		{Title: "Business Permit Application", Filename: "permit.pdf", FilePath: "document-a.pdf", FileSize: 10, IsActive: true},
		{Title: "Rice Farming Guide", Filename: "rice.pdf", FilePath: "document-b.pdf", FileSize: 10, IsActive: true},
		{Title: "Old form", Description: "superseded permit", Filename: "old.pdf", FilePath: "document-c.pdf", FileSize: 10, IsActive: true},
	}
	for i := range docs {
		if err := app.db.Create(&docs[i]).Error; err != nil {
			t.Fatalf("seed doc: %v", err)
		}
	}
	// the third document is withdrawn
	app.db.Model(&docs[2]).Update("is_active", false)

	w, env := app.do(t, http.MethodGet, "/api/documents?search=permit", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var page struct {
		Documents  []models.Document `json:"documents"`
		Pagination struct {
			TotalCount int64 `json:"total_count"`
		} `json:"pagination"`
	}
	decode(t, env.Data, &page)
	if len(page.Documents) != 1 || page.Documents[0].Title != "Business Permit Application" {
		t.Fatalf("search results = %+v", page.Documents)
	}
	if page.Pagination.TotalCount != 1 {
		t.Fatalf("total_count = %d", page.Pagination.TotalCount)
	}

	// only admins can see withdrawn documents
	_, userToken := app.newUser(t, "ana@example.com", models.RoleUser)
	_, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)
	for _, tc := range []struct {
		token string
		want  int
	}{{userToken, 1}, {adminToken, 2}} {
		_, env = app.do(t, http.MethodGet, "/api/documents?search=permit&include_inactive=true", tc.token, nil)
		decode(t, env.Data, &page)
		if len(page.Documents) != tc.want {
			t.Fatalf("include_inactive results = %d, want %d", len(page.Documents), tc.want)
		}
	}
}

func TestNonAdminCannotDeleteAnnouncement(t *testing.T) {
	app := newTestApp(t)
	_, userToken := app.newUser(t, "ana@example.com", models.RoleUser)
	admin, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)

	item := models.Announcement{Title: "Road closure", Content: "Main street closed", Type: "warning", IsActive: true, CreatedBy: &admin.ID}
	if err := app.db.Create(&item).Error; err != nil {
		t.Fatalf("seed announcement: %v", err)
	}
	path := fmt.Sprintf("/api/admin/announcements/%d", item.ID)

	if w, _ := app.do(t, http.MethodDelete, path, userToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("user delete status = %d", w.Code)
	}
	if w, _ := app.do(t, http.MethodDelete, path, "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous delete status = %d", w.Code)
	}
	if w, _ := app.do(t, http.MethodDelete, path, adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("admin delete status = %d", w.Code)
	}

	_, env := app.do(t, http.MethodGet, "/api/announcements", "", nil)
	var active []models.Announcement
	decode(t, env.Data, &active)
	if len(active) != 0 {
		t.Fatalf("deleted announcement still listed: %+v", active)
	}
	var unscoped models.Announcement
	if err := app.db.Unscoped().First(&unscoped, item.ID).Error; err != nil {
		t.Fatalf("row should remain soft-deleted: %v", err)
	}
}

func TestUploadThenDownloadReturnsSameBytes(t *testing.T) {
	app := newTestApp(t)
	_, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)
	_, userToken := app.newUser(t, "ana@example.com", models.RoleUser)
	content := []byte("%PDF-1.4\nbarangay permit form\n")

	doc := app.upload(t, adminToken, "permit.pdf", content)
	if doc.FileSize != int64(len(content)) || doc.Filename != "permit.pdf" {
		t.Fatalf("uploaded doc = %+v", doc)
	}
	if len(doc.TagList) != 2 {
		t.Fatalf("tags = %v", doc.TagList)
	}

	w, _ := app.do(t, http.MethodGet, fmt.Sprintf("/api/documents/%d/download", doc.ID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), content) {
		t.Fatalf("downloaded %q, want %q", w.Body.Bytes(), content)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Fatalf("Content-Disposition = %q", cd)
	}

	// non-admins cannot upload, and disallowed types are refused
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("document", "script.exe")
	_, _ = part.Write([]byte("MZ"))
	_ = mw.Close()
	for _, tc := range []struct {
		token string
		want  int
	}{{userToken, http.StatusForbidden}, {adminToken, http.StatusBadRequest}} {
		req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", bytes.NewReader(buf.Bytes()))
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+tc.token)
		rec := httptest.NewRecorder()
		app.engine.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("upload status = %d, want %d", rec.Code, tc.want)
		}
	}
}

func TestConcurrentDownloadsAreAllCounted(t *testing.T) {
	app := newTestApp(t)
	_, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)
	doc := app.upload(t, adminToken, "guide.txt", []byte("planting calendar"))

	const n = 12
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/documents/%d/download", doc.ID), nil)
			w := httptest.NewRecorder()
			app.engine.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("download status = %d", w.Code)
			}
		}()
	}
	wg.Wait()

	var stored models.Document
	if err := app.db.First(&stored, doc.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.DownloadCount != n {
		t.Fatalf("download_count = %d, want %d", stored.DownloadCount, n)
	}
}

func createPost(t *testing.T, app *testApp, token string) models.ForumPost {
	t.Helper()
	w, env := app.do(t, http.MethodPost, "/api/forum/posts", token, gin.H{
		"title": "Best rice variety for Nueva Ecija?", "content": "<p>Looking for advice</p><script>alert(1)</script>",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create post status = %d body=%s", w.Code, w.Body.String())
	}
	var post models.ForumPost
	decode(t, env.Data, &post)
	return post
}

func TestCreatePostSanitisesContent(t *testing.T) {
	app := newTestApp(t)
	_, token := app.newUser(t, "ana@example.com", models.RoleUser)
	post := createPost(t, app, token)
	if strings.Contains(post.Content, "<script") || !strings.Contains(post.Content, "Looking for advice") {
		t.Fatalf("content = %q", post.Content)
	}
	if w, _ := app.do(t, http.MethodPost, "/api/forum/posts", "", gin.H{"title": "x", "content": "y"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create status = %d", w.Code)
	}
}

func TestConcurrentRepliesAreAllCounted(t *testing.T) {
	app := newTestApp(t)
	_, token := app.newUser(t, "ana@example.com", models.RoleUser)
	post := createPost(t, app, token)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, _ := json.Marshal(gin.H{"content": fmt.Sprintf("reply %d", i)})
			req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/forum/posts/%d/replies", post.ID), bytes.NewReader(b))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			app.engine.ServeHTTP(w, req)
			if w.Code != http.StatusCreated {
				t.Errorf("reply status = %d body=%s", w.Code, w.Body.String())
			}
		}(i)
	}
	wg.Wait()

	var stored models.ForumPost
	if err := app.db.First(&stored, post.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.ReplyCount != n {
		t.Fatalf("reply_count = %d, want %d", stored.ReplyCount, n)
	}
	if stored.LastReplyAt == nil || stored.LastReplyBy == nil {
		t.Fatalf("last reply fields not set: %+v", stored)
	}
}

func TestGetPostCountsEveryView(t *testing.T) {
	app := newTestApp(t)
	_, token := app.newUser(t, "ana@example.com", models.RoleUser)
	post := createPost(t, app, token)
	path := fmt.Sprintf("/api/forum/posts/%d", post.ID)

	app.do(t, http.MethodPost, path+"/replies", token, gin.H{"content": "first"})
	app.do(t, http.MethodPost, path+"/replies", token, gin.H{"content": "second"})

	app.do(t, http.MethodGet, path, "", nil)
	w, env := app.do(t, http.MethodGet, path, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got models.ForumPost
	decode(t, env.Data, &got)
	if got.ViewCount != 2 {
		t.Fatalf("view_count = %d, want 2", got.ViewCount)
	}
	if len(got.Replies) != 2 || got.Replies[0].Content != "first" || got.Replies[1].Content != "second" {
		t.Fatalf("replies = %+v", got.Replies)
	}

	if w, _ := app.do(t, http.MethodGet, "/api/forum/posts/9999", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing post status = %d", w.Code)
	}
}

func TestPinTwiceWritesOneAuditRecord(t *testing.T) {
	app := newTestApp(t)
	_, userToken := app.newUser(t, "ana@example.com", models.RoleUser)
	_, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)
	post := createPost(t, app, userToken)
	path := fmt.Sprintf("/api/forum/posts/%d/pin", post.ID)

	if w, _ := app.do(t, http.MethodPatch, path, userToken, gin.H{"is_pinned": true}); w.Code != http.StatusForbidden {
		t.Fatalf("user pin status = %d", w.Code)
	}
	for i := 0; i < 2; i++ {
		if w, _ := app.do(t, http.MethodPatch, path, adminToken, gin.H{"is_pinned": true}); w.Code != http.StatusOK {
			t.Fatalf("pin %d status = %d", i, w.Code)
		}
	}

	var stored models.ForumPost
	app.db.First(&stored, post.ID)
	if !stored.IsPinned {
		t.Fatal("post not pinned")
	}
	var audits int64
	app.db.Model(&models.AuditLog{}).Where("action = ? AND target_id = ?", "post.pin", post.ID).Count(&audits)
	if audits != 1 {
		t.Fatalf("audit records = %d, want 1", audits)
	}
}

func TestLockedPostRefusesReplies(t *testing.T) {
	app := newTestApp(t)
	_, userToken := app.newUser(t, "ana@example.com", models.RoleUser)
	_, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)
	post := createPost(t, app, userToken)

	if w, _ := app.do(t, http.MethodPatch, fmt.Sprintf("/api/forum/posts/%d/lock", post.ID), adminToken, gin.H{"is_locked": true}); w.Code != http.StatusOK {
		t.Fatalf("lock status = %d", w.Code)
	}
	w, env := app.do(t, http.MethodPost, fmt.Sprintf("/api/forum/posts/%d/replies", post.ID), userToken, gin.H{"content": "too late"})
	if w.Code != http.StatusForbidden || env.Error != "post is locked" {
		t.Fatalf("reply on locked post = %d %q", w.Code, env.Error)
	}
	if w, _ := app.do(t, http.MethodPost, "/api/forum/posts/9999/replies", userToken, gin.H{"content": "hello"}); w.Code != http.StatusNotFound {
		t.Fatalf("reply on missing post status = %d", w.Code)
	}

	var stored models.ForumPost
	app.db.First(&stored, post.ID)
	if stored.ReplyCount != 0 {
		t.Fatalf("reply_count = %d, want 0", stored.ReplyCount)
	}
}

func TestDeletePostCascadesToReplies(t *testing.T) {
	app := newTestApp(t)
	_, authorToken := app.newUser(t, "ana@example.com", models.RoleUser)
	_, otherToken := app.newUser(t, "ben@example.com", models.RoleUser)
	post := createPost(t, app, authorToken)
	path := fmt.Sprintf("/api/forum/posts/%d", post.ID)
	app.do(t, http.MethodPost, path+"/replies", otherToken, gin.H{"content": "reply"})

	if w, _ := app.do(t, http.MethodDelete, path, otherToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("non-author delete status = %d", w.Code)
	}
	if w, _ := app.do(t, http.MethodDelete, path, authorToken, nil); w.Code != http.StatusOK {
		t.Fatalf("author delete status = %d", w.Code)
	}
	if w, _ := app.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("deleted post status = %d", w.Code)
	}

	var live, all int64
	app.db.Model(&models.ForumReply{}).Where("post_id = ?", post.ID).Count(&live)
	app.db.Unscoped().Model(&models.ForumReply{}).Where("post_id = ?", post.ID).Count(&all)
	if live != 0 || all != 1 {
		t.Fatalf("replies live=%d all=%d, want 0 and 1", live, all)
	}
}

func TestAdminCannotChangeOwnAccount(t *testing.T) {
	app := newTestApp(t)
	admin, adminToken := app.newUser(t, "root@example.com", models.RoleAdmin)
	user, _ := app.newUser(t, "ana@example.com", models.RoleUser)

	w, _ := app.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/role", admin.ID), adminToken, gin.H{"role": "user"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("self role change status = %d", w.Code)
	}
	w, env := app.do(t, http.MethodPatch, fmt.Sprintf("/api/admin/users/%d/status", user.ID), adminToken, gin.H{"is_active": false})
	if w.Code != http.StatusOK {
		t.Fatalf("disable status = %d body=%s", w.Code, w.Body.String())
	}
	var updated models.User
	decode(t, env.Data, &updated)
	if updated.IsActive {
		t.Fatal("user still active")
	}

	// a disabled account can no longer log in
	hash, _ := utils.HashPassword("secret123")
	app.db.Model(&models.User{}).Where("id = ?", user.ID).Update("password_hash", hash)
	if w, _ := app.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "secret123"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("disabled login status = %d", w.Code)
	}
}

func TestWeatherUnknownCityIsNotFound(t *testing.T) {
	app := newTestApp(t)
	w, env := app.do(t, http.MethodGet, "/api/weather/Atlantis", "", nil)
	if w.Code != http.StatusNotFound || env.Error != "city not found" {
		t.Fatalf("unknown city = %d %q", w.Code, env.Error)
	}
	// known city without an API key
	w, _ = app.do(t, http.MethodGet, "/api/weather/Manila", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("no key status = %d", w.Code)
	}
	w, env = app.do(t, http.MethodGet, "/api/weather/cities", "", nil)
	var cities []struct {
		Name string `json:"name"`
	}
	decode(t, env.Data, &cities)
	if w.Code != http.StatusOK || len(cities) != 20 {
		t.Fatalf("cities = %d (%d entries)", w.Code, len(cities))
	}
}

func TestUnknownAPIRouteIsJSON404(t *testing.T) {
	app := newTestApp(t)
	w, env := app.do(t, http.MethodGet, "/api/does-not-exist", "", nil)
	if w.Code != http.StatusNotFound || env.Code != utils.CodeNotFound {
		t.Fatalf("unknown api route = %d code=%d", w.Code, env.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("security headers missing")
	}
}
