package logger

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string
	Environment string
	ServiceName string
}

// RequestIDHeader carries the request id between client, proxy and service
const RequestIDHeader = "X-Request-ID"

type contextKey string

const loggerKey contextKey = "logger"

const ginLoggerKey = "logger"

var log = zap.NewNop()

// InitLogger initializes the global logger with configuration
func InitLogger(config *LogConfig) error {
	level := parseLevel(config.Level)

	var (
		l   *zap.Logger
		err error
	)
	if config.Environment == "production" {
		prodConfig := zap.NewProductionConfig()
		prodConfig.Level = zap.NewAtomicLevelAt(level)
		prodConfig.EncoderConfig.TimeKey = "timestamp"
		prodConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err = prodConfig.Build(zap.Fields(
			zap.String("service", config.ServiceName),
			zap.String("environment", config.Environment),
		))
	} else {
		devConfig := zap.NewDevelopmentConfig()
		devConfig.Level = zap.NewAtomicLevelAt(level)
		devConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		l, err = devConfig.Build(zap.Fields(
			zap.String("service", config.ServiceName),
		))
	}
	if err != nil {
		return err
	}

	log = l
	zap.ReplaceGlobals(log)
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	return log
}

// Sync flushes buffered log entries
func Sync() {
	_ = log.Sync()
}

// FromContext retrieves the logger from the context
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return log
	}
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return log
}

// WithContext adds the logger to the context
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromGin retrieves the request logger stored by Middleware
func FromGin(c *gin.Context) *zap.Logger {
	if l, ok := c.Get(ginLoggerKey); ok {
		if zl, ok := l.(*zap.Logger); ok {
			return zl
		}
	}
	return log
}

// Middleware assigns a request id, stores a request-scoped logger on both the
// gin context and the request context, and logs the request once handled
func Middleware(logRequests bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		ctxLogger := log.With(zap.String("request_id", requestID))
		c.Set(ginLoggerKey, ctxLogger)
		c.Request = c.Request.WithContext(WithContext(c.Request.Context(), ctxLogger))

		c.Next()

		if !logRequests {
			return
		}
		ctxLogger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
