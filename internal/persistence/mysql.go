package persistence

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/repository"
)

// MySQL wraps a gorm connection to MySQL.
type MySQL struct {
	DB *gorm.DB
}

// NewMySQL opens the connection and, when configured, migrates the users table.
func NewMySQL(ctx context.Context, cfg config.MySQLConfig, logger *zap.Logger) (*MySQL, error) {
	if cfg.DSN == "" {
		return nil, errors.New("mysql DSN not provided")
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	logger.Info("connected to mysql")

	if cfg.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&repository.UserRecord{}); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		logger.Info("mysql schema migrated")
	}

	return &MySQL{DB: db}, nil
}

// Close releases the underlying connection pool.
func (m *MySQL) Close() {
	if m == nil || m.DB == nil {
		return
	}
	if sqlDB, err := m.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
