package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/agroph/portal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// ErrUnsupportedDatabase is returned for DATABASE_URL schemes without a driver.
var ErrUnsupportedDatabase = errors.New("unsupported database url scheme")

// InitDatabase connects using the configured DATABASE_URL, migrates and seeds. Boot failures are fatal.
func InitDatabase() *gorm.DB {
	if db != nil {
		return db
	}
	cfg := Get()

	conn, err := OpenDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := Migrate(conn); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	db = conn
	return db
}

// OpenDatabase picks the gorm dialector from the URL scheme and applies pool settings.
func OpenDatabase(cfg AppConfig) (*gorm.DB, error) {
	dialector, isSQLite, err := dialectorFor(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Per-statement SQL only at debug; slow queries are still reported at warn.
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		IgnoreRelationshipsWhenMigrating:         true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Use(StatementTimeout{Timeout: cfg.DBAcquireTimeout}); err != nil {
		return nil, fmt.Errorf("register statement timeout: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if isSQLite {
		// sqlite allows one writer; a single connection serialises access instead of returning SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(cfg.DBIdleTimeout)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return conn, nil
}

func dialectorFor(url string) (gorm.Dialector, bool, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), false, nil
	case strings.HasPrefix(url, "mysql://"):
		dsn := strings.TrimPrefix(url, "mysql://")
		if !strings.Contains(dsn, "parseTime") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "charset=utf8mb4&parseTime=True&loc=Local"
		}
		return mysql.Open(dsn), false, nil
	case strings.HasPrefix(url, "sqlite://"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(url, "sqlite://"))), true, nil
	case strings.HasPrefix(url, "file:"), strings.HasSuffix(url, ".db"), url == ":memory:":
		return sqlite.Open(sqliteDSN(url)), true, nil
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrUnsupportedDatabase, url)
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Migrate creates or extends every table and inserts the default categories.
func Migrate(conn *gorm.DB) error {
	conn = conn.WithContext(WithoutStatementTimeout(context.Background()))
	if err := conn.AutoMigrate(models.All()...); err != nil {
		return err
	}
	return seedCategories(conn)
}

func seedCategories(conn *gorm.DB) error {
	docCats := []models.DocumentCategory{
		{Name: "Permits & Licenses", Description: "Business permits, barangay clearances and licensing forms", Color: "#007bff", Icon: "fas fa-id-card"},
		{Name: "Agriculture", Description: "Farming guides, crop advisories and subsidy programs", Color: "#28a745", Icon: "fas fa-seedling"},
		{Name: "Health", Description: "Public health notices and forms", Color: "#dc3545", Icon: "fas fa-notes-medical"},
		{Name: "Education", Description: "Scholarships and school requirements", Color: "#ffc107", Icon: "fas fa-graduation-cap"},
		{Name: "Public Notices", Description: "Ordinances, resolutions and advisories", Color: "#6c757d", Icon: "fas fa-bullhorn"},
	}
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&docCats).Error; err != nil {
		return fmt.Errorf("seed document categories: %w", err)
	}

	forumCats := []models.ForumCategory{
		{Name: "General Discussion", Description: "Anything about the community", Color: "#007bff"},
		{Name: "Farming Tips", Description: "Share techniques and harvest stories", Color: "#28a745"},
		{Name: "Local News", Description: "What is happening around town", Color: "#17a2b8"},
		{Name: "Help & Support", Description: "Questions about the portal and public services", Color: "#ffc107"},
	}
	if err := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&forumCats).Error; err != nil {
		return fmt.Errorf("seed forum categories: %w", err)
	}
	return nil
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

// DB provides access to the initialized gorm DB instance.
func DB() *gorm.DB {
	if db == nil {
		log.Fatal("database not initialized, call InitDatabase first")
	}
	return db
}
