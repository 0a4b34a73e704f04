package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteScheme = "sqlite://"

type Options struct {
	URL           string
	IsDevelopment bool
	// Tracing installs the otelgorm plugin.
	Tracing bool
}

// Open connects to postgres (postgres:// or a libpq DSN) or sqlite (sqlite://<path>).
func Open(opts Options) (*gorm.DB, error) {
	logLevel := logger.Silent
	if opts.IsDevelopment {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector(opts.URL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to setup otel plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if IsSQLite(opts.URL) {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	return db, nil
}

func IsSQLite(url string) bool {
	return strings.HasPrefix(url, sqliteScheme)
}

func dialector(url string) gorm.Dialector {
	if IsSQLite(url) {
		dsn := strings.TrimPrefix(url, sqliteScheme)
		if !strings.Contains(dsn, "_pragma=foreign_keys") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		}
		return sqlite.Open(dsn)
	}
	return postgres.Open(url)
}

func CheckHealth(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
