package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Auth        AuthConfig      `yaml:"auth"`
	Search      SearchConfig    `yaml:"search"`
	OTP         OTPConfig       `yaml:"otp"`
	Mail        MailConfig      `yaml:"mail"`
	SMS         SMSConfig       `yaml:"sms"`
	Referral    ReferralConfig  `yaml:"referral"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`
	Cleanup     CleanupConfig   `yaml:"cleanup"`
	Logging     LoggingConfig   `yaml:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	CORS        CORSConfig      `yaml:"cors"`
	Timezone    string          `yaml:"timezone"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                   string `yaml:"port"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"` // mysql, postgres or sqlite
	LogLevel string         `yaml:"log_level"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SQLiteConfig contains the SQLite file location
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains token and session settings
type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenTTLHours    int    `yaml:"token_ttl_hours"`
	SessionCookie    string `yaml:"session_cookie"`
	SessionTTLHours  int    `yaml:"session_ttl_hours"`
	SecureCookie     bool   `yaml:"secure_cookie"`
	InternalAPIToken string `yaml:"internal_api_token"`
	BcryptCost       int    `yaml:"bcrypt_cost"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Enabled           bool              `yaml:"enabled"`
	Meilisearch       MeilisearchConfig `yaml:"meilisearch"`
	WorkerPollSeconds int               `yaml:"worker_poll_seconds"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
}

// OTPConfig contains one-time password settings for agent introductions
type OTPConfig struct {
	Length              int `yaml:"length"`
	TTLMinutes          int `yaml:"ttl_minutes"`
	SendsPerHour        int `yaml:"sends_per_hour"`
	VerifyPerWindow     int `yaml:"verify_per_window"`
	VerifyWindowMinutes int `yaml:"verify_window_minutes"`
}

// MailConfig contains SMTP settings
type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMSConfig contains SMS gateway settings
type SMSConfig struct {
	Enabled           bool    `yaml:"enabled"`
	GatewayURL        string  `yaml:"gateway_url"`
	Token             string  `yaml:"token"`
	Sender            string  `yaml:"sender"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
}

// ReferralConfig contains points rules
type ReferralConfig struct {
	BaseURL               string   `yaml:"base_url"`
	ReferrerPoints        int64    `yaml:"referrer_points"`
	ReferredPoints        int64    `yaml:"referred_points"`
	MinimumPropertyPoints int64    `yaml:"minimum_property_points"`
	PremiumCities         []string `yaml:"premium_cities"`
	LeaderboardSize       int      `yaml:"leaderboard_size"`
}

// SchedulerConfig contains cron specifications for background jobs
type SchedulerConfig struct {
	Enabled         bool   `yaml:"enabled"`
	OTPExpirySpec   string `yaml:"otp_expiry_spec"`
	ReconcileSpec   string `yaml:"reconcile_spec"`
	CleanupSpec     string `yaml:"cleanup_spec"`
	SearchRetrySpec string `yaml:"search_retry_spec"`
}

// CleanupConfig contains retention settings
type CleanupConfig struct {
	NotificationRetentionDays int `yaml:"notification_retention_days"`
	MaxDeletionCount          int `yaml:"max_deletion_count"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	LogRequests bool   `yaml:"log_requests"`
}

// MetricsConfig contains prometheus settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
}

// CORSConfig contains allowed origins
type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:                   "8080",
			ShutdownTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{
			Type:     "sqlite",
			LogLevel: "warn",
			SQLite:   SQLiteConfig{Path: "realestate.db"},
			Postgres: PostgresConfig{SSLMode: "disable"},
		},
		Auth: AuthConfig{
			TokenTTLHours:   24 * 7,
			SessionCookie:   "re_session",
			SessionTTLHours: 24 * 30,
			BcryptCost:      10,
		},
		Search: SearchConfig{
			Enabled:           false,
			Meilisearch:       MeilisearchConfig{Index: "properties"},
			WorkerPollSeconds: 15,
		},
		OTP: OTPConfig{
			Length:              6,
			TTLMinutes:          15,
			SendsPerHour:        5,
			VerifyPerWindow:     5,
			VerifyWindowMinutes: 15,
		},
		Mail: MailConfig{
			Port: 587,
		},
		SMS: SMSConfig{
			RequestsPerSecond: 2,
			TimeoutSeconds:    10,
		},
		Referral: ReferralConfig{
			BaseURL:               "http://localhost:3000",
			ReferrerPoints:        100,
			ReferredPoints:        50,
			MinimumPropertyPoints: 50,
			PremiumCities:         []string{"Αθήνα", "Θεσσαλονίκη", "Πειραιάς"},
			LeaderboardSize:       10,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			OTPExpirySpec:   "*/10 * * * *",
			ReconcileSpec:   "30 3 * * *",
			CleanupSpec:     "0 4 * * *",
			SearchRetrySpec: "*/5 * * * *",
		},
		Cleanup: CleanupConfig{
			NotificationRetentionDays: 90,
			MaxDeletionCount:          10000,
		},
		Logging: LoggingConfig{
			Level:       "info",
			LogRequests: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Prefix:  "realestate",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"http://localhost:3000"},
		},
		Timezone: "Europe/Athens",
	}
}

// LoadConfig loads configuration from a YAML file, then applies .env and
// environment overrides
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// .env is optional
	_ = godotenv.Load()

	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("APP_ENV", c.Environment)
	c.Server.Port = getEnv("HTTP_PORT", c.Server.Port)

	c.Database.Type = strings.ToLower(getEnv("DB_TYPE", c.Database.Type))
	switch c.Database.Type {
	case "mysql":
		c.Database.MySQL.Host = getEnv("DB_HOST", c.Database.MySQL.Host)
		c.Database.MySQL.Port = getEnvInt("DB_PORT", c.Database.MySQL.Port)
		c.Database.MySQL.User = getEnv("DB_USER", c.Database.MySQL.User)
		c.Database.MySQL.Password = getEnv("DB_PASSWORD", c.Database.MySQL.Password)
		c.Database.MySQL.Database = getEnv("DB_NAME", c.Database.MySQL.Database)
	case "postgres":
		c.Database.Postgres.Host = getEnv("DB_HOST", c.Database.Postgres.Host)
		c.Database.Postgres.Port = getEnvInt("DB_PORT", c.Database.Postgres.Port)
		c.Database.Postgres.User = getEnv("DB_USER", c.Database.Postgres.User)
		c.Database.Postgres.Password = getEnv("DB_PASSWORD", c.Database.Postgres.Password)
		c.Database.Postgres.Database = getEnv("DB_NAME", c.Database.Postgres.Database)
	}
	c.Database.SQLite.Path = getEnv("SQLITE_PATH", c.Database.SQLite.Path)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.InternalAPIToken = getEnv("INTERNAL_API_TOKEN", c.Auth.InternalAPIToken)

	if host := os.Getenv("MEILISEARCH_HOST"); host != "" {
		c.Search.Meilisearch.Host = host
		c.Search.Enabled = true
	}
	c.Search.Meilisearch.APIKey = getEnv("MEILISEARCH_KEY", c.Search.Meilisearch.APIKey)

	c.Mail.Host = getEnv("SMTP_HOST", c.Mail.Host)
	c.Mail.Port = getEnvInt("SMTP_PORT", c.Mail.Port)
	c.Mail.Username = getEnv("SMTP_USER", c.Mail.Username)
	c.Mail.Password = getEnv("SMTP_PASSWORD", c.Mail.Password)
	c.Mail.From = getEnv("SMTP_FROM", c.Mail.From)
	if c.Mail.Host != "" {
		c.Mail.Enabled = true
	}

	c.SMS.GatewayURL = getEnv("SMS_GATEWAY_URL", c.SMS.GatewayURL)
	c.SMS.Token = getEnv("SMS_TOKEN", c.SMS.Token)
	c.SMS.Sender = getEnv("SMS_SENDER", c.SMS.Sender)
	if c.SMS.GatewayURL != "" {
		c.SMS.Enabled = true
	}

	c.Referral.BaseURL = getEnv("PUBLIC_BASE_URL", c.Referral.BaseURL)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

// Validate checks the settings the process cannot run without
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Auth.JWTSecret == "" && !c.IsDevelopment() {
		return errors.New("auth.jwt_secret is required outside development")
	}
	if c.OTP.TTLMinutes <= 0 {
		return errors.New("otp.ttl_minutes must be positive")
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return errors.New("otp.length must be between 4 and 10")
	}
	return nil
}

// IsDevelopment reports whether the process runs with development defaults
func (c *Config) IsDevelopment() bool {
	return c.Environment == "" || c.Environment == "development"
}

// GetTokenTTL returns the JWT lifetime
func (c *AuthConfig) GetTokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// GetSessionTTL returns the session cookie lifetime
func (c *AuthConfig) GetSessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// GetTTL returns the OTP lifetime
func (c *OTPConfig) GetTTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// GetVerifyWindow returns the window used to count OTP verification attempts
func (c *OTPConfig) GetVerifyWindow() time.Duration {
	return time.Duration(c.VerifyWindowMinutes) * time.Minute
}

// GetTimeout returns the SMS gateway timeout
func (c *SMSConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetShutdownTimeout returns the graceful shutdown timeout
func (c *ServerConfig) GetShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
