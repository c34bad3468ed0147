package auth

import (
	"crypto/subtle"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Principal is the normalized caller identity, whichever credential carried it
type Principal struct {
	UserID string      `json:"userId"`
	Role   models.Role `json:"role"`
}

// IsAdmin reports whether the caller is an administrator
func (p Principal) IsAdmin() bool {
	return p.Role.IsAdmin()
}

// CanAccessUser reports whether the caller may read data of userID
func (p Principal) CanAccessUser(userID string) bool {
	return p.IsAdmin() || p.UserID == userID
}

const (
	principalKey        = "auth.principal"
	internalCallerKey   = "auth.internal"
	InternalTokenHeader = "X-Internal-Token"
)

// Authenticator resolves either a session cookie or a bearer JWT
type Authenticator struct {
	tokens        *TokenIssuer
	sessions      *SessionStore
	cookieName    string
	internalToken string
}

func NewAuthenticator(tokens *TokenIssuer, sessions *SessionStore, cookieName, internalToken string) *Authenticator {
	return &Authenticator{
		tokens:        tokens,
		sessions:      sessions,
		cookieName:    cookieName,
		internalToken: internalToken,
	}
}

// CookieName returns the session cookie name
func (a *Authenticator) CookieName() string {
	return a.cookieName
}

// resolve tries the bearer token first, then the session cookie.
// found is false when the request carries no credential at all.
func (a *Authenticator) resolve(c *gin.Context) (p Principal, found bool, err error) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return Principal{}, true, ErrInvalidToken
		}
		p, err := a.tokens.Parse(strings.TrimSpace(parts[1]))
		return p, true, err
	}

	if cookie, err := c.Cookie(a.cookieName); err == nil && cookie != "" {
		p, err := a.sessions.Authenticate(c.Request.Context(), cookie)
		return p, true, err
	}

	return Principal{}, false, nil
}

// Required rejects requests without a valid credential with 401
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, found, err := a.resolve(c)
		if !found {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		if err != nil {
			logger.FromGin(c).Debug("authentication failed", zap.Error(err))
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// Optional attaches a principal when a valid credential is present
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, found, err := a.resolve(c); found && err == nil {
			c.Set(principalKey, p)
		}
		c.Next()
	}
}

// RequireInternal admits callers presenting the internal API token, or
// authenticated admins
func (a *Authenticator) RequireInternal() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.GetHeader(InternalTokenHeader); token != "" && a.internalToken != "" &&
			subtle.ConstantTimeCompare([]byte(token), []byte(a.internalToken)) == 1 {
			c.Set(internalCallerKey, true)
			c.Next()
			return
		}

		p, found, err := a.resolve(c)
		if !found || err != nil {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		if !p.IsAdmin() {
			apperror.Respond(c, apperror.Forbidden("Forbidden"))
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireRole must run after Required; it rejects other roles with 403
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		apperror.Respond(c, apperror.Forbidden("Forbidden"))
	}
}

// PrincipalFrom returns the principal stored by the middleware
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// IsInternalCaller reports whether the request used the internal API token
func IsInternalCaller(c *gin.Context) bool {
	return c.GetBool(internalCallerKey)
}

// SetPrincipal stores p on the context; used by tests and internal callers
func SetPrincipal(c *gin.Context, p Principal) {
	c.Set(principalKey, p)
}
