// Package database opens the relational store and the optional Redis cache.
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticsummit/ticsite/internal/config"
	"github.com/ticsummit/ticsite/pkg/metrics"
	"github.com/ticsummit/ticsite/pkg/models"
)

// Open connects to the configured database and applies pool settings.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log, cfg.LogLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	configurePool(sqlDB, cfg)

	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database is reachable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CollectPoolStats publishes pool gauges every interval until ctx is done.
func CollectPoolStats(ctx context.Context, db *gorm.DB, name string, interval time.Duration) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		stats := sqlDB.Stats()
		metrics.DBOpenConns.WithLabelValues(name).Set(float64(stats.OpenConnections))
		metrics.DBIdleConns.WithLabelValues(name).Set(float64(stats.Idle))
		metrics.DBInUseConns.WithLabelValues(name).Set(float64(stats.InUse))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
