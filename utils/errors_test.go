package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agroph/portal/config"
	"github.com/gin-gonic/gin"
)

func TestAsAppErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"typed", NotFoundError("document not found"), http.StatusNotFound},
		{"wrapped typed", fmt.Errorf("lookup: %w", ConflictError("email already registered")), http.StatusConflict},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AsAppError(tc.err).Status; got != tc.status {
				t.Fatalf("status = %d, want %d", got, tc.status)
			}
		})
	}
}

func TestFailHidesDetailOutsideDevelopment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, env := range []string{"production", "development"} {
		config.Set(config.AppConfig{AppEnv: env, JWTSecret: "x"})
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		ctx.Request = httptest.NewRequest(http.MethodGet, "/api/x", nil)

		Fail(ctx, InternalError(errors.New("pq: relation missing")))

		var body JSONResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if w.Code != http.StatusInternalServerError || body.Code != CodeInternal {
			t.Fatalf("%s: got status %d code %d", env, w.Code, body.Code)
		}
		if body.Error != "internal server error" {
			t.Fatalf("%s: error = %q", env, body.Error)
		}
		if (env == "development") != (body.Detail != "") {
			t.Fatalf("%s: detail = %q", env, body.Detail)
		}
	}
}
