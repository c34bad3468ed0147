package database

import (
	"context"
	"fmt"
	"realestate-platform/internal/config"
	"realestate-platform/internal/models"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormDB struct {
	db *gorm.DB
}

// Open connects to the database selected by cfg.Type
func Open(cfg config.DatabaseConfig) (*GormDB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "mysql":
		dialector = mysqlDialector(cfg.MySQL)
	case "postgres":
		dialector = postgresDialector(cfg.Postgres)
	case "sqlite":
		dialector = sqliteDialector(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	if cfg.Type != "sqlite" {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return &GormDB{db: db}, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection, used by the health endpoint
func (gdb *GormDB) Ping(ctx context.Context) error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	return Migrate(gdb.db)
}

// Migrate runs AutoMigrate for every model. Parents are listed before children.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.Property{},
		&models.PropertyAvailability{},
		&models.PropertyStats{},
		&models.PropertyChange{},
		&models.ViewingRequest{},
		&models.Favorite{},
		&models.BuyerAgentConnection{},
		&models.PropertyLead{},
		&models.Transaction{},
		&models.TransactionProgress{},
		&models.Notification{},
		&models.UserPointsAccount{},
		&models.Referral{},
		&models.ReferralPoints{},
		&models.SupportTicket{},
		&models.SupportMessage{},
		&models.SearchIndexTask{},
		&models.PurgeLog{},
	)
}
