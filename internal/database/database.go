package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/livepoll/internal/polls"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"

	sqliteForeignKeysPragma = "_pragma=foreign_keys(1)"
)

// Config selects the store backend.
type Config struct {
	Driver string
	DSN    string
}

// Open connects to the configured store and brings the schema up to date.
func Open(cfg Config, log *zap.Logger) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	gormConfig := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSQLite, "":
		db, err = gorm.Open(sqlite.Open(SQLiteDSN(dsn)), gormConfig)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	case DriverMySQL:
		db, err = gorm.Open(mysql.Open(dsn), gormConfig)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := migrateOrClose(db, log); err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("database initialized", zap.String("driver", db.Dialector.Name()))
	}

	return db, nil
}

// OpenSQLite is a convenience wrapper used by tests and the default configuration.
func OpenSQLite(path string, log *zap.Logger) (*gorm.DB, error) {
	return Open(Config{Driver: DriverSQLite, DSN: path}, log)
}

// Migrate creates or updates the poll schema and applies pending data migrations.
func Migrate(db *gorm.DB, log *zap.Logger) error {
	models := append(polls.Models(), &migrationRecord{})
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}
	return applyMigrations(db, log)
}

// migrateOrClose releases the connection pool when the schema cannot be brought up to date.
func migrateOrClose(db *gorm.DB, log *zap.Logger) error {
	migrateErr := Migrate(db, log)
	if migrateErr == nil {
		return nil
	}
	if sqlDB, err := db.DB(); err == nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			return errors.Join(migrateErr, closeErr)
		}
	}
	return migrateErr
}

// SQLiteDSN enables foreign key enforcement on a SQLite DSN unless the caller already chose.
func SQLiteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + sqliteForeignKeysPragma
}
