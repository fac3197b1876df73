package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Environment               string
	CORSOrigins               []string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Database                  DatabaseConfig
	RateLimit                 RateLimitConfig
	Mailer                    MailerConfig
	Storage                   StorageConfig
	Reminders                 ReminderConfig
	ShopLocation              *time.Location
	LogFile                   string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RateLimitConfig controls the fixed-window limiter on /api routes.
type RateLimitConfig struct {
	RedisURL string
	Window   time.Duration
	Max      int
}

// MailerConfig holds SMTP configuration
type MailerConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	FromName   string
	AdminEmail string
}

// StorageConfig selects and configures the file storage backend
type StorageConfig struct {
	Driver        string
	CloudinaryURL string
	S3Bucket      string
	Folder        string
}

// ReminderConfig controls the booking reminder dispatcher
type ReminderConfig struct {
	Interval time.Duration
	Lead     time.Duration
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "autorepair"),
	}

	dbConfig.DSN = getEnv("DATABASE_DSN", fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name))

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	window, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "15m"))
	if err != nil || window <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %q", getEnv("RATE_LIMIT_WINDOW", ""))
	}

	maxRequests, err := strconv.Atoi(getEnv("RATE_LIMIT_MAX", "100"))
	if err != nil || maxRequests <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MAX: %q", getEnv("RATE_LIMIT_MAX", ""))
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}

	reminderInterval, err := time.ParseDuration(getEnv("REMINDER_INTERVAL", "5m"))
	if err != nil || reminderInterval <= 0 {
		return nil, fmt.Errorf("invalid REMINDER_INTERVAL: %q", getEnv("REMINDER_INTERVAL", ""))
	}

	reminderLead, err := time.ParseDuration(getEnv("REMINDER_LEAD", "24h"))
	if err != nil || reminderLead <= 0 {
		return nil, fmt.Errorf("invalid REMINDER_LEAD: %q", getEnv("REMINDER_LEAD", ""))
	}

	location, err := time.LoadLocation(getEnv("SHOP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHOP_TIMEZONE: %w", err)
	}

	storageDriver := strings.ToLower(getEnv("FILE_STORAGE", "cloudinary"))
	if storageDriver != "cloudinary" && storageDriver != "s3" {
		return nil, fmt.Errorf("invalid FILE_STORAGE: %q", storageDriver)
	}

	return &Config{
		Port:                      getEnv("PORT", "5000"),
		Environment:               getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		CORSOrigins:               splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Database:                  dbConfig,
		RateLimit: RateLimitConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			Window:   window,
			Max:      maxRequests,
		},
		Mailer: MailerConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       smtpPort,
			Username:   getEnv("SMTP_USERNAME", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			From:       getEnv("MAIL_FROM", "no-reply@autorepair.local"),
			FromName:   getEnv("MAIL_FROM_NAME", "Auto Repair Shop"),
			AdminEmail: getEnv("ADMIN_EMAIL", ""),
		},
		Storage: StorageConfig{
			Driver:        storageDriver,
			CloudinaryURL: getEnv("CLOUDINARY_URL", ""),
			S3Bucket:      getEnv("S3_BUCKET", ""),
			Folder:        getEnv("STORAGE_FOLDER", "autorepair"),
		},
		Reminders: ReminderConfig{
			Interval: reminderInterval,
			Lead:     reminderLead,
		},
		ShopLocation: location,
		LogFile:      getEnv("LOG_FILE", ""),
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
