package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"realestate-platform/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Kind classifies an error into the HTTP-facing taxonomy
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindConflict
	KindTooManyRequests
)

// InternalMessage is the only text clients see for unexpected failures
const InternalMessage = "Internal server error"

// Error is a domain error carrying a client-safe message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the kind to an HTTP status code
func (k Kind) Status() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func TooManyRequests(format string, args ...interface{}) *Error {
	return newError(KindTooManyRequests, format, args...)
}

// Internal wraps an unexpected failure; the cause is logged, never shown
func Internal(err error, format string, args ...interface{}) *Error {
	e := newError(KindInternal, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Respond writes err to the client as {"error": message}
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		c.AbortWithStatusJSON(appErr.Kind.Status(), gin.H{"error": appErr.Message})
		return
	}

	logger.FromGin(c).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": InternalMessage})
}
