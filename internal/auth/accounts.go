package auth

import (
	"context"
	"fmt"
	"net/mail"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/database"
	"realestate-platform/internal/models"
	"strings"

	"gorm.io/gorm"
)

// Accounts registers users and checks their passwords
type Accounts struct {
	db         *gorm.DB
	bcryptCost int
}

func NewAccounts(db *gorm.DB, bcryptCost int) *Accounts {
	return &Accounts{db: db, bcryptCost: bcryptCost}
}

// RegisterInput is the self-service sign-up payload
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// Register creates a user. ADMIN cannot be self-assigned. A placeholder user
// created by an agent introduction is claimed by registering with its e-mail.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := models.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, apperror.Validation("name, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Validation("invalid email address")
	}
	if len(in.Password) < 8 {
		return nil, apperror.Validation("password must be at least 8 characters")
	}

	role := models.RoleBuyer
	if in.Role != "" {
		r, ok := models.ParseRole(in.Role)
		if !ok || r == models.RoleAdmin {
			return nil, apperror.Validation("invalid role")
		}
		role = r
	}

	hash, err := HashPassword(in.Password, a.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).First(&user).Error
		switch {
		case err == nil && user.Placeholder:
			return tx.Model(&user).Updates(map[string]interface{}{
				"name":          name,
				"phone":         in.Phone,
				"password_hash": hash,
				"role":          role,
				"placeholder":   false,
			}).Error
		case err == nil:
			return apperror.Conflict("email already registered")
		case !database.IsNotFound(err):
			return err
		}

		user = models.User{
			Name:         name,
			Email:        email,
			Phone:        in.Phone,
			PasswordHash: hash,
			Role:         role,
		}
		if err := tx.Create(&user).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperror.Conflict("email already registered")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := a.db.WithContext(ctx).Where("id = ?", user.ID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Login verifies credentials
func (a *Accounts) Login(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := a.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, err
	}
	if user.Placeholder || !CheckPassword(user.PasswordHash, password) {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	return &user, nil
}

// Get loads a user by id
func (a *Accounts) Get(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := a.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, err
	}
	return &user, nil
}
