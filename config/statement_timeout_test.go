package config

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/agroph/portal/models"
)

func TestStatementTimeoutBoundsPoolWait(t *testing.T) {
	cfg := AppConfig{
		DatabaseURL:      "sqlite://" + filepath.Join(t.TempDir(), "timeout.db"),
		LogLevel:         "silent",
		DBAcquireTimeout: 150 * time.Millisecond,
	}
	applyDefaults(&cfg)
	db, err := OpenDatabase(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })

	// sqlite runs with a single connection; holding it exhausts the pool
	held, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("hold conn: %v", err)
	}

	start := time.Now()
	var user models.User
	err = db.WithContext(context.Background()).First(&user).Error
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("query on exhausted pool err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("query stalled for %s", elapsed)
	}

	held.Close()

	q := db.Model(&models.DocumentCategory{}).Where("name <> ?", "")
	var n int64
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count after release: %v", err)
	}
	var cats []models.DocumentCategory
	if err := q.Find(&cats).Error; err != nil {
		t.Fatalf("reused chain: %v", err)
	}
	if n == 0 || int64(len(cats)) != n {
		t.Fatalf("count = %d, rows = %d", n, len(cats))
	}
}

func TestAcquireTimeoutDefaultAndEnv(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)
	if c.DBAcquireTimeout != 2*time.Second {
		t.Fatalf("default acquire timeout = %s", c.DBAcquireTimeout)
	}
	t.Setenv("DB_ACQUIRE_TIMEOUT", "750ms")
	applyEnvOverrides(&c)
	if c.DBAcquireTimeout != 750*time.Millisecond {
		t.Fatalf("env acquire timeout = %s", c.DBAcquireTimeout)
	}
}
