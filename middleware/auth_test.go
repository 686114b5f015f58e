package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/utils"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{AppEnv: "test", JWTSecret: "middleware-secret"})

	r := gin.New()
	r.GET("/private", AuthRequired(), func(c *gin.Context) {
		utils.Success(c, gin.H{"user_id": CurrentUserID(c)})
	})
	r.GET("/admin", AuthRequired(), AdminRequired(), func(c *gin.Context) {
		utils.Success(c, nil)
	})
	r.GET("/maybe", OptionalAuth(), func(c *gin.Context) {
		utils.Success(c, gin.H{"user_id": CurrentUserID(c)})
	})
	return r
}

func doGet(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := newAuthRouter()
	userToken, _ := utils.GenerateToken(7, "user", "Ana", 0)

	if w := doGet(r, "/private", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: got %d", w.Code)
	}
	if w := doGet(r, "/private", "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: got %d", w.Code)
	}
	if w := doGet(r, "/private", userToken); w.Code != http.StatusOK {
		t.Fatalf("valid token: got %d body=%s", w.Code, w.Body.String())
	}
}

func TestAdminRequired(t *testing.T) {
	r := newAuthRouter()
	userToken, _ := utils.GenerateToken(7, "user", "Ana", 0)
	adminToken, _ := utils.GenerateToken(1, "admin", "Root", 0)

	if w := doGet(r, "/admin", userToken); w.Code != http.StatusForbidden {
		t.Fatalf("user on admin route: got %d", w.Code)
	}
	if w := doGet(r, "/admin", adminToken); w.Code != http.StatusOK {
		t.Fatalf("admin on admin route: got %d", w.Code)
	}
}

func TestOptionalAuthContinuesAnonymously(t *testing.T) {
	r := newAuthRouter()
	if w := doGet(r, "/maybe", "garbage"); w.Code != http.StatusOK {
		t.Fatalf("invalid token on optional route: got %d", w.Code)
	}
}
