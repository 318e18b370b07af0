package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrDatabaseNotInitialized is returned by the helpers when handed a nil handle
var ErrDatabaseNotInitialized = errors.New("credential database not initialized")

// ConnectDatabase opens the MySQL credential store and applies the pool
// limits from cfg.Database. The caller owns the returned handle.
func ConnectDatabase(cfg *Config) (*gorm.DB, error) {
	// Identity lookups are hot; only dev logs every statement
	level := logger.Error
	if cfg.IsDev() {
		level = logger.Info
	}

	db, err := gorm.Open(mysql.Open(buildDSN(cfg.Database)), &gorm.Config{
		Logger:                 logger.Default.LogMode(level),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	sqlDB, err := applyPool(db, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping credential store: %w", err)
	}

	log.Printf("✅ Credential store connected [%s:%s/%s] (pool %d/%d)",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.MaxIdleConns,
		cfg.Database.MaxOpenConns,
	)
	return db, nil
}

// applyPool sets the connection pool limits on the underlying sql.DB
func applyPool(db *gorm.DB, d DatabaseConfig) (*sql.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("credential store handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(d.MaxIdleConns)
	sqlDB.SetMaxOpenConns(d.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(d.ConnMaxLifetime)
	return sqlDB, nil
}

// buildDSN returns the database connection string
func buildDSN(d DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.DBName,
	)
}

// CloseDatabase closes the credential store
func CloseDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck pings the credential store
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return ErrDatabaseNotInitialized
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
