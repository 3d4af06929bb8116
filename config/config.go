package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/upb/coffee-main-api/services"
)

// Credential store backends selectable with CREDENTIAL_STORE
const (
	CredentialStoreMemory   = "memory"
	CredentialStoreFile     = "file"
	CredentialStorePostgres = "postgres"
)

// Identity sources selectable with IDENTITY_SOURCE
const (
	// IdentitySourceStore re-resolves the token subject in the credential store on every request
	IdentitySourceStore = "store"
	// IdentitySourceClaims builds the identity from the token claims alone
	IdentitySourceClaims = "claims"
)

// MinTokenTTL is the shortest token lifetime accepted by Validate
const MinTokenTTL = time.Hour

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	AuditDatabase *DatabaseConfig // Optional: separate DB for auth events. When nil, audit uses main DB.
	JWT           JWTConfig
	Credentials   CredentialsConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret     string
	Expiration time.Duration // JWT_EXPIRATION is given in milliseconds
	Issuer     string
}

// CredentialsConfig selects and configures the credential store
type CredentialsConfig struct {
	Store              string
	File               string
	MemoryPasswordHash string
	IdentitySource     string
	LookupTimeout      time.Duration
	InitSchema         bool
	// HashCost is the bcrypt cost the stored hashes are provisioned with.
	// Unknown-user logins are compared against a hash of the same cost.
	HashCost int
}

// AuditConfig configures the asynchronous auth event trail
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	Workers    int
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	expiration, err := getEnvAsMillis("JWT_EXPIRATION", MinTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database:      loadDatabaseConfig(),
		AuditDatabase: loadAuditDatabaseConfig(),
		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			Expiration: expiration,
			Issuer:     getEnv("JWT_ISSUER", "coffee-main-api"),
		},
		Credentials: CredentialsConfig{
			Store:              strings.ToLower(getEnv("CREDENTIAL_STORE", CredentialStoreMemory)),
			File:               getEnv("CREDENTIAL_FILE", ""),
			MemoryPasswordHash: getEnv("MEMORY_USER_PASSWORD_HASH", ""),
			IdentitySource:     strings.ToLower(getEnv("IDENTITY_SOURCE", IdentitySourceStore)),
			LookupTimeout:      getEnvAsDuration("CREDENTIAL_LOOKUP_TIMEOUT", 3*time.Second),
			InitSchema:         getEnvAsBool("DB_INIT_SCHEMA", false),
			HashCost:           getEnvAsInt("PASSWORD_HASH_COST", bcrypt.DefaultCost),
		},
		Audit: AuditConfig{
			Enabled:    getEnvAsBool("AUDIT_ENABLED", true),
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set.
// Every error it returns matches services.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	// Token signing
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return invalid("JWT_SECRET must not be blank")
	}
	if c.IsProduction() && len(c.JWT.Secret) < 32 {
		return invalid("JWT_SECRET must be at least 32 bytes in production")
	}
	if c.JWT.Expiration < MinTokenTTL {
		return invalid(fmt.Sprintf("JWT_EXPIRATION must be at least %d ms, got %d",
			MinTokenTTL.Milliseconds(), c.JWT.Expiration.Milliseconds()))
	}

	// Credential store
	switch c.Credentials.Store {
	case CredentialStoreMemory:
	case CredentialStoreFile:
		if c.Credentials.File == "" {
			return invalid("CREDENTIAL_FILE is required when CREDENTIAL_STORE=file")
		}
	case CredentialStorePostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	default:
		return invalid(fmt.Sprintf("unknown CREDENTIAL_STORE %q", c.Credentials.Store))
	}

	switch c.Credentials.IdentitySource {
	case IdentitySourceStore, IdentitySourceClaims:
	default:
		return invalid(fmt.Sprintf("unknown IDENTITY_SOURCE %q", c.Credentials.IdentitySource))
	}
	if c.Credentials.LookupTimeout <= 0 {
		return invalid("CREDENTIAL_LOOKUP_TIMEOUT must be positive")
	}
	if cost := c.Credentials.HashCost; cost != 0 && (cost < bcrypt.MinCost || cost > bcrypt.MaxCost) {
		return invalid(fmt.Sprintf("PASSWORD_HASH_COST must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, cost))
	}

	// Audit trail
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return invalid("AUDIT_BUFFER_SIZE must be positive")
		}
		if c.Audit.Workers <= 0 {
			return invalid("AUDIT_WORKERS must be positive")
		}
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return invalid("log level is required")
	}
	switch c.Observability.LogFormat {
	case "json", "console", "text":
	default:
		return invalid(fmt.Sprintf("unknown LOG_FORMAT %q", c.Observability.LogFormat))
	}

	return nil
}

func (c *DatabaseConfig) validate() error {
	// DATABASE_URL or DB_* vars
	if c.ConnectionString == "" && c.Host == "" {
		return invalid("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.ConnectionString == "" {
		if c.User == "" {
			return invalid("database user is required")
		}
		if c.Database == "" {
			return invalid("database name is required")
		}
	}
	return nil
}

// UsesDatabase returns true when a PostgreSQL connection is needed
func (c *Config) UsesDatabase() bool {
	return c.Credentials.Store == CredentialStorePostgres
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "coffee"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "coffee"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadAuditDatabaseConfig loads audit DB config from DATABASE_URL_AUDIT.
// Returns nil when not set (audit uses main DB).
func loadAuditDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL_AUDIT", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func invalid(message string) error {
	return services.WrapConfiguration(message, nil)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsMillis reads an integer number of milliseconds. Unlike the other
// helpers a malformed value is an error, not a silent default.
func getEnvAsMillis(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, services.WrapConfiguration(fmt.Sprintf("%s must be an integer number of milliseconds", key), err)
	}
	return time.Duration(value) * time.Millisecond, nil
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
