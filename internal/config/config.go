package config

import (
	"errors"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // ride time zones must resolve in minimal images
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Auth     AuthConfig
	Ride     RideConfig
	Gateway  GatewayConfig
	Storage  StorageConfig
	Mail     MailConfig
	Invoice  InvoiceConfig
	Log      LogConfig
	Worker   WorkerConfig
	Realtime RealtimeConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	FrontendURL     string // CORS origin and payment result redirect base
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// AuthConfig holds the shared secret used to verify access tokens.
type AuthConfig struct {
	JWTSecret string
}

// RideConfig holds ride ledger settings.
type RideConfig struct {
	CancelWindow time.Duration
	TimeZone     string
}

// GatewayConfig holds SSLCommerz settings.
type GatewayConfig struct {
	BaseURL        string
	StoreID        string
	StorePassword  string
	Currency       string
	CallbackBase   string // public base of this API, callbacks go to <base>/v1/payments/...
	DefaultAddress string
	DefaultPhone   string
	Timeout        time.Duration
}

// StorageConfig holds S3 settings for invoices.
type StorageConfig struct {
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Prefix        string
	Endpoint      string
	PublicBaseURL string
	LinkExpiry    time.Duration
}

// MailConfig holds SMTP settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// InvoiceConfig holds invoice branding.
type InvoiceConfig struct {
	CompanyName string
	Currency    string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string // debug, info, warn, error
	Format      string // json or console
	Development bool
}

// WorkerConfig sizes the post-commit job queue.
type WorkerConfig struct {
	Workers    int
	Buffer     int
	JobTimeout time.Duration
}

// RealtimeConfig holds fan-out settings.
type RealtimeConfig struct {
	UseRedisBus bool          // fan out through Redis pub/sub so every replica's hub delivers
	LocationTTL time.Duration // how long the last driver location per ride is kept
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			FrontendURL:     getEnv("FRONTEND_URL", ""),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "goride"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getBoolEnv("DB_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 20),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "goride"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Ride: RideConfig{
			CancelWindow: getDurationEnv("RIDE_CANCEL_WINDOW", 5*time.Minute),
			TimeZone:     getEnv("RIDE_TIME_ZONE", "Asia/Dhaka"),
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnv("SSL_BASE_URL", "https://sandbox.sslcommerz.com"),
			StoreID:        getEnv("SSL_STORE_ID", ""),
			StorePassword:  getEnv("SSL_STORE_PASSWORD", ""),
			Currency:       getEnv("SSL_CURRENCY", "BDT"),
			CallbackBase:   getEnv("SSL_CALLBACK_BASE", "http://localhost:8080"),
			DefaultAddress: getEnv("SSL_DEFAULT_ADDRESS", "Dhaka, Bangladesh"),
			DefaultPhone:   getEnv("SSL_DEFAULT_PHONE", "01700000000"),
			Timeout:        getDurationEnv("SSL_TIMEOUT", 15*time.Second),
		},
		Storage: StorageConfig{
			Region:        getEnv("S3_REGION", "ap-southeast-1"),
			AccessKey:     getEnv("S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("S3_SECRET_KEY", ""),
			Bucket:        getEnv("S3_BUCKET", ""),
			Prefix:        getEnv("S3_PREFIX", "invoices"),
			Endpoint:      getEnv("S3_ENDPOINT", ""),
			PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
			LinkExpiry:    getDurationEnv("S3_LINK_EXPIRY", 7*24*time.Hour),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getIntEnv("SMTP_PORT", 587),
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			From:     getEnv("SMTP_FROM", "no-reply@goride.local"),
			FromName: getEnv("SMTP_FROM_NAME", "GoRide"),
		},
		Invoice: InvoiceConfig{
			CompanyName: getEnv("INVOICE_COMPANY", "GoRide"),
			Currency:    getEnv("INVOICE_CURRENCY", "BDT"),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Development: getBoolEnv("LOG_DEVELOPMENT", false),
		},
		Worker: WorkerConfig{
			Workers:    getIntEnv("WORKER_COUNT", 4),
			Buffer:     getIntEnv("WORKER_BUFFER", 256),
			JobTimeout: getDurationEnv("WORKER_JOB_TIMEOUT", time.Minute),
		},
		Realtime: RealtimeConfig{
			UseRedisBus: getBoolEnv("REALTIME_REDIS_BUS", false),
			LocationTTL: getDurationEnv("REALTIME_LOCATION_TTL", 10*time.Minute),
		},
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Ride.CancelWindow <= 0 {
		return errors.New("RIDE_CANCEL_WINDOW must be positive")
	}
	if _, err := time.LoadLocation(c.Ride.TimeZone); err != nil {
		return errors.New("RIDE_TIME_ZONE is not a known time zone")
	}
	return nil
}

// Location returns the configured ride time zone.
func (c RideConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
