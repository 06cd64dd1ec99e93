package config

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB connects gorm to the configured driver. Postgres goes through a pgx stdlib pool;
// sqlite is limited to one connection since it serializes writers anyway.
func OpenDB(d Database, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	}

	switch d.Driver {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(d.DSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", d.DSN, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil

	case "postgres":
		pgxCfg, err := pgx.ParseConfig(d.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		sqlDB := stdlib.OpenDB(*pgxCfg)
		if d.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(d.MaxOpenConns)
		}
		if d.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(d.MaxIdleConns)
		}
		if d.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(d.ConnMaxLifetime)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormCfg)
	}
	return nil, fmt.Errorf("unsupported database driver %q", d.Driver)
}
