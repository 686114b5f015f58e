package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/utils"
)

const currentJSON = `{
  "main": {"temp": 31.6, "feels_like": 37.2, "humidity": 70, "pressure": 1009},
  "weather": [{"description": "scattered clouds", "icon": "03d"}],
  "wind": {"speed": 4.1, "deg": 250},
  "visibility": 9500,
  "sys": {"sunrise": 1700000000, "sunset": 1700043000}
}`

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	config.Set(config.AppConfig{
		AppEnv:      "test",
		JWTSecret:   "weather-secret",
		DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "weather.db"),
		LogLevel:    "silent",
	})
	db, err := config.OpenDatabase(config.Get())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func fakeUpstream(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("appid") != "test-key" || r.URL.Query().Get("units") != "metric" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestForCityCachesForTTL(t *testing.T) {
	db := newTestDB(t)
	upstream, calls := fakeUpstream(t, http.StatusOK, currentJSON)
	svc := NewService(db, NewClient(upstream.URL, "test-key"), 10*time.Minute, nil)
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := svc.ForCity(ctx, "manila")
	if err != nil {
		t.Fatalf("ForCity: %v", err)
	}
	if first.Cached || first.City != "Manila" {
		t.Fatalf("first lookup should hit upstream: %+v", first)
	}
	if first.Temperature != 32 || first.FeelsLike != 37 || first.Visibility == nil || *first.Visibility != 10 {
		t.Fatalf("unexpected normalisation: %+v", first.Report)
	}

	now = now.Add(5 * time.Minute)
	second, err := svc.ForCity(ctx, "Manila")
	if err != nil {
		t.Fatalf("ForCity: %v", err)
	}
	if !second.Cached || second.Description != "scattered clouds" {
		t.Fatalf("second lookup should be cached: %+v", second)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("upstream called %d times, want 1", *calls)
	}

	now = now.Add(6 * time.Minute)
	third, err := svc.ForCity(ctx, "Manila")
	if err != nil {
		t.Fatalf("ForCity: %v", err)
	}
	if third.Cached || atomic.LoadInt32(calls) != 2 {
		t.Fatalf("expired entry should refetch (cached=%v calls=%d)", third.Cached, *calls)
	}
}

func TestUnknownCityAndMissingKey(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, 0, nil)

	_, err := svc.ForCity(context.Background(), "Gotham")
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Status != http.StatusNotFound || appErr.Message != "city not found" {
		t.Fatalf("unknown city: got %v", err)
	}

	_, err = svc.ForCity(context.Background(), "Cebu")
	if !errors.As(err, &appErr) || appErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("missing key: got %v", err)
	}
}

func TestUpstreamFailureIsBadGateway(t *testing.T) {
	db := newTestDB(t)
	upstream, _ := fakeUpstream(t, http.StatusInternalServerError, `{}`)
	svc := NewService(db, NewClient(upstream.URL, "test-key"), 0, nil)

	_, err := svc.ForCity(context.Background(), "Davao")
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Status != http.StatusBadGateway {
		t.Fatalf("got %v, want 502", err)
	}
}

func TestForCoordinatesRoundsKey(t *testing.T) {
	db := newTestDB(t)
	upstream, calls := fakeUpstream(t, http.StatusOK, currentJSON)
	svc := NewService(db, NewClient(upstream.URL, "test-key"), 0, nil)
	ctx := context.Background()

	a, err := svc.ForCoordinates(ctx, 14.59951, 120.98419)
	if err != nil {
		t.Fatalf("ForCoordinates: %v", err)
	}
	b, err := svc.ForCoordinates(ctx, 14.60049, 120.9801)
	if err != nil {
		t.Fatalf("ForCoordinates: %v", err)
	}
	if a.City != "14.60,120.98" || !b.Cached || atomic.LoadInt32(calls) != 1 {
		t.Fatalf("a=%s b.cached=%v calls=%d", a.City, b.Cached, *calls)
	}

	if _, err := svc.ForCoordinates(ctx, 91, 0); err == nil {
		t.Fatal("out of range latitude accepted")
	}
}
