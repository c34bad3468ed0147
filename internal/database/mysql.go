package database

import (
	"fmt"
	"realestate-platform/internal/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func mysqlDialector(cfg config.MySQLConfig) gorm.Dialector {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database)
	return mysql.Open(dsn)
}
