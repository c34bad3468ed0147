package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the flat user role. Stored and compared in upper case.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleAgent  Role = "AGENT"
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
)

var roles = map[Role]struct{}{
	RoleAdmin:  {},
	RoleAgent:  {},
	RoleBuyer:  {},
	RoleSeller: {},
}

// ParseRole normalizes a role string ("admin", " Agent ") to its canonical form
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := roles[r]
	return r, ok
}

// IsAdmin reports whether the role is ADMIN
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Phone        string    `gorm:"type:varchar(50)" json:"phone,omitempty"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'BUYER';index" json:"role"`
	Placeholder  bool      `gorm:"not null;default:false" json:"placeholder"` // created by an agent introduction
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = NormalizeEmail(u.Email)
	return nil
}

// NormalizeEmail lower-cases and trims an address used as a natural key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session is a browser login. Only the sha256 of the cookie value is stored.
type Session struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"userId"`
	TokenHash string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
