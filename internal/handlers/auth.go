package handlers

import (
	"net/http"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"realestate-platform/internal/referrals"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles sign-up, login and logout
type AuthHandler struct {
	accounts     *auth.Accounts
	tokens       *auth.TokenIssuer
	sessions     *auth.SessionStore
	referrals    *referrals.Service
	cookieName   string
	secureCookie bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts *auth.Accounts, tokens *auth.TokenIssuer, sessions *auth.SessionStore, r *referrals.Service, cookieName string, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		tokens:       tokens,
		sessions:     sessions,
		referrals:    r,
		cookieName:   cookieName,
		secureCookie: secureCookie,
	}
}

type registerRequest struct {
	auth.RegisterInput
	ReferralCode string `json:"referralCode"`
}

// Register creates an account and applies the registration bonus when a
// referral code is supplied. A rejected code does not fail the sign-up.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user, err := h.accounts.Register(ctx, req.RegisterInput)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	link, err := h.referrals.GenerateLink(ctx, user.ID)
	if err != nil {
		logger.FromGin(c).Warn("failed to open points account", zap.String("user_id", user.ID), zap.Error(err))
	}

	resp := gin.H{"user": user}
	if link != nil {
		resp["referralCode"] = link.ReferralCode
	}
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		result, err := h.referrals.ProcessRegistration(ctx, code, user.ID)
		if err != nil {
			logger.FromGin(c).Info("referral code not applied", zap.String("user_id", user.ID), zap.Error(err))
			resp["referral"] = gin.H{"success": false, "message": err.Error()}
		} else {
			resp["referral"] = result
		}
	}

	logger.FromGin(c).Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	c.JSON(http.StatusCreated, resp)
}

// Login checks credentials, returns a JWT and sets the session cookie
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()

	user, err := h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		apperror.Respond(c, err)
		return
	}

	token, expires, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	sessionToken, _, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, sessionToken, int(h.sessions.TTL().Seconds()), "/", "", h.secureCookie, true)

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expires,
		"user":      user,
	})
}

// Logout drops the session behind the cookie
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(h.cookieName); err == nil && token != "" {
		if err := h.sessions.Delete(c.Request.Context(), token); err != nil {
			logger.FromGin(c).Warn("failed to delete session", zap.Error(err))
		}
	}
	c.SetCookie(h.cookieName, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me returns the caller's profile
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	user, err := h.accounts.Get(c.Request.Context(), p.UserID)
	if err != nil {
		apperror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "isAdmin": user.Role == models.RoleAdmin})
}
