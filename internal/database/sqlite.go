package database

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// sqliteDialector opens path with the pure-Go driver. Write transactions take
// the lock up front so concurrent read-then-write sequences serialize.
func sqliteDialector(path string) gorm.Dialector {
	return sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate&_time_format=sqlite",
	}
}

// OpenSQLite opens (and creates) a SQLite database file
func OpenSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqliteDialector(path), &gorm.Config{})
}
