package auth

import (
	"context"
	"errors"
	"realestate-platform/internal/models"
	"time"

	"gorm.io/gorm"
)

var ErrSessionExpired = errors.New("session expired")

// SessionStore keeps browser sessions in the database
type SessionStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewSessionStore(db *gorm.DB, ttl time.Duration) *SessionStore {
	return &SessionStore{db: db, ttl: ttl}
}

// Create starts a session and returns the plain cookie value
func (s *SessionStore) Create(ctx context.Context, userID string) (string, *models.Session, error) {
	token, err := RandomToken(32)
	if err != nil {
		return "", nil, err
	}
	session := &models.Session{
		UserID:    userID,
		TokenHash: hashToken(token),
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return "", nil, err
	}
	return token, session, nil
}

// Authenticate resolves a cookie value to the session's user
func (s *SessionStore) Authenticate(ctx context.Context, token string) (Principal, error) {
	hash := hashToken(token)

	var session models.Session
	if err := s.db.WithContext(ctx).Where("token_hash = ?", hash).First(&session).Error; err != nil {
		return Principal{}, ErrInvalidToken
	}
	if session.ExpiresAt.Before(time.Now()) {
		_ = s.db.WithContext(ctx).Delete(&session).Error
		return Principal{}, ErrSessionExpired
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "role").Where("id = ?", session.UserID).First(&user).Error; err != nil {
		return Principal{}, ErrInvalidToken
	}
	role, ok := models.ParseRole(string(user.Role))
	if !ok {
		return Principal{}, ErrInvalidRole
	}
	return Principal{UserID: user.ID, Role: role}, nil
}

// Delete ends the session for a cookie value
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.db.WithContext(ctx).Where("token_hash = ?", hashToken(token)).Delete(&models.Session{}).Error
}

// TTL returns the session lifetime
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}
