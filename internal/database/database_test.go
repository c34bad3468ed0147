package database_test

import (
	"errors"
	"fmt"
	"realestate-platform/internal/database"
	"realestate-platform/internal/database/dbtest"
	"realestate-platform/internal/models"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestIsUniqueViolationSQLite(t *testing.T) {
	db := dbtest.New(t)

	buyer := dbtest.CreateUser(t, db, "buyer", models.RoleBuyer)
	agent := dbtest.CreateUser(t, db, "agent", models.RoleAgent)
	seller := dbtest.CreateUser(t, db, "seller", models.RoleSeller)
	prop := dbtest.CreateProperty(t, db, seller.ID, "Διαμέρισμα")

	first := &models.BuyerAgentConnection{BuyerID: buyer.ID, AgentID: agent.ID, PropertyID: prop.ID}
	require.NoError(t, db.Create(first).Error)

	dup := &models.BuyerAgentConnection{BuyerID: buyer.ID, AgentID: agent.ID, PropertyID: prop.ID}
	err := db.Create(dup).Error
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
}

func TestIsUniqueViolationDriverErrors(t *testing.T) {
	assert.False(t, database.IsUniqueViolation(nil))
	assert.True(t, database.IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, database.IsUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
	assert.False(t, database.IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, database.IsUniqueViolation(&mysqldriver.MySQLError{Number: 1062}))
	assert.False(t, database.IsUniqueViolation(errors.New("connection refused")))
}

func TestIsUniqueViolationThroughGormMySQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `users`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err = db.Create(&models.User{Name: "a", Email: "a@example.com", PasswordHash: "x", Role: models.RoleBuyer}).Error
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsNotFound(t *testing.T) {
	db := dbtest.New(t)
	var u models.User
	err := db.Where("id = ?", "missing").First(&u).Error
	assert.True(t, database.IsNotFound(err))
	assert.False(t, database.IsNotFound(errors.New("other")))
}
