// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package db

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BoostyLabs/anchor/internal/models"
)

// ErrUnsupportedDriver defines that database driver is neither sqlite nor mysql.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

const (
	// DriverSQLite defines sqlite driver name.
	DriverSQLite = "sqlite"
	// DriverMySQL defines mysql driver name.
	DriverMySQL = "mysql"
)

// Open opens a GORM connection for provided driver and DSN.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("db: %w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", driver, err)
	}

	if !strings.EqualFold(driver, DriverSQLite) {
		return db, nil
	}

	// every connection to in-memory sqlite is a separate database.
	if isMemoryDSN(dsn) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: connection pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)

		return db, nil
	}

	// writers must not wait for open snapshots.
	if err = db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("db: enable wal: %w", err)
	}

	return db, nil
}

// isMemoryDSN returns true if sqlite DSN points to in-memory database.
func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Message{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Close closes underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db: connection pool: %w", err)
	}
	return sqlDB.Close()
}
