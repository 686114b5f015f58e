package cmd

import (
	"path/filepath"
	"testing"

	"github.com/agroph/portal/config"
	"github.com/agroph/portal/models"
)

func TestSetRolePromotesOnceAndAudits(t *testing.T) {
	config.Set(config.AppConfig{
		AppEnv:      "test",
		JWTSecret:   "cmd-secret",
		DatabaseURL: "sqlite://" + filepath.Join(t.TempDir(), "cmd.db"),
		LogLevel:    "silent",
	})
	db, err := config.OpenDatabase(config.Get())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Create(&models.User{Email: "ana@example.com", DisplayName: "Ana", IsActive: true}).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	for i := 0; i < 2; i++ {
		user, err := setRole(db, " ANA@example.com ", models.RoleAdmin)
		if err != nil {
			t.Fatalf("setRole: %v", err)
		}
		if user.Role != models.RoleAdmin {
			t.Fatalf("role = %q", user.Role)
		}
	}
	var audits int64
	db.Model(&models.AuditLog{}).Where("action = ?", "user.role").Count(&audits)
	if audits != 1 {
		t.Fatalf("audit records = %d, want 1", audits)
	}

	if _, err := setRole(db, "nobody@example.com", models.RoleAdmin); err == nil {
		t.Fatal("expected an error for an unknown email")
	}
}
