package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mikepea/budgetshare/pkg/budgetshare/config"
)

// Open connects to the configured database. SQLite is the default; postgres
// is selected with database.driver=postgres and a libpq-style DSN.
//
// TranslateError is always on so unique-constraint violations surface as
// gorm.ErrDuplicatedKey regardless of driver.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormLogger := logger.Default
	if !cfg.LogMode {
		gormLogger = gormLogger.LogMode(logger.Silent)
	}
	gormConfig := &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		if !isMemoryDSN(cfg.DSN) {
			if err := os.MkdirAll(filepath.Dir(sqlitePath(cfg.DSN)), 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dialector = sqlite.Open(SQLiteDSN(cfg.DSN))
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	// an in-memory sqlite database lives only as long as its connection
	if !isMemoryDSN(cfg.DSN) {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// OpenMemory returns a private in-memory SQLite database pinned to a single
// connection. Used by tests across packages.
func OpenMemory() (*gorm.DB, error) {
	return Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          ":memory:",
		MaxOpenConns: 1,
	})
}

// SQLiteDSN appends the pragmas every pooled connection needs to a sqlite
// DSN. Parameters already present are left alone.
func SQLiteDSN(dsn string) string {
	params := []string{"_foreign_keys=on"}
	if !isMemoryDSN(dsn) {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range params {
		key := p[:strings.Index(p, "=")+1]
		if strings.Contains(dsn, key) {
			continue
		}
		dsn += sep + p
		sep = "&"
	}
	return dsn
}

func sqlitePath(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(dsn, "?"); i >= 0 {
		return dsn[:i]
	}
	return dsn
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}
