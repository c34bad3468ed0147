package database

import (
	"fmt"
	"realestate-platform/internal/config"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// postgresDialector uses lib/pq as the database/sql driver instead of pgx
func postgresDialector(cfg config.PostgresConfig) gorm.Dialector {
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port, cfg.User, cfg.Password, cfg.Database, sslMode)

	return postgres.New(postgres.Config{
		DriverName: "postgres",
		DSN:        dsn,
	})
}
