package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageDynamoDB = "dynamodb"
)

// Identity modes
const (
	// AuthJWT validates bearer tokens itself
	AuthJWT = "jwt"
	// AuthGateway trusts the X-User-ID header set by an upstream authorizer
	AuthGateway = "gateway"
)

// Breaker holds storage circuit breaker settings
type Breaker struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold"`
	MinRequests      uint32        `yaml:"min_requests"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress  string        `yaml:"server_address"`
	Environment    string        `yaml:"environment"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ServiceName    string        `yaml:"service_name"`

	// Storage
	StorageBackend string `yaml:"storage_backend"`
	DatabaseURL    string `yaml:"database_url"`
	DBAutoMigrate  bool   `yaml:"db_auto_migrate"`
	DBMaxOpenConns int    `yaml:"db_max_open_conns"`

	// AWS configuration
	AWSRegion        string `yaml:"aws_region"`
	DynamoDBTable    string `yaml:"dynamodb_table"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint"`
	GSI1IndexName    string `yaml:"gsi1_index_name"` // graphs by owner
	GSI2IndexName    string `yaml:"gsi2_index_name"` // nodes and edges by id

	// IsLambda switches logs to JSON for CloudWatch
	IsLambda bool `yaml:"is_lambda"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	AuthMode         string `yaml:"auth_mode"`
	JWTSecret        string `yaml:"jwt_secret"`
	JWTIssuer        string `yaml:"jwt_issuer"`
	JWTAudience      string `yaml:"jwt_audience"`
	JWTSigningMethod string `yaml:"jwt_signing_method"`
	JWTPublicKey     string `yaml:"jwt_public_key"`
	JWTPrivateKey    string `yaml:"jwt_private_key"` // RS256 minting in mindmapctl only

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	Breaker Breaker `yaml:"breaker"`

	// Feature flags
	EnableMetrics bool   `yaml:"enable_metrics"`
	EnableTracing bool   `yaml:"enable_tracing"`
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// CONFIG_FILE if any, and environment variables, in that order of precedence
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadEnvironmentVariables()

	if cfg.StorageBackend == "" && !cfg.IsProduction() {
		cfg.StorageBackend = StorageMemory
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerAddress:  ":8080",
		Environment:    "development",
		RequestTimeout: 30 * time.Second,
		ServiceName:    "mindmap-api",
		DBMaxOpenConns: 10,
		AWSRegion:      "us-west-2",
		DynamoDBTable:  "mindmap",
		GSI1IndexName:  "GSI1",
		GSI2IndexName:  "GSI2",
		LogLevel:       "info",
		AuthMode:       AuthJWT,
		JWTIssuer:      "mindmap",
		JWTAudience:    "mindmap-editor",
		CORSAllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
		},
		Breaker: Breaker{
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 0.6,
			MinRequests:      5,
			CallTimeout:      5 * time.Second,
		},
		EnableMetrics: true,
		OTLPEndpoint:  "localhost:4317",
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironmentVariables() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", c.RequestTimeout)
	c.ServiceName = getEnv("SERVICE_NAME", c.ServiceName)

	c.StorageBackend = getEnv("STORAGE_BACKEND", c.StorageBackend)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.DBAutoMigrate = getEnvBool("DB_AUTO_MIGRATE", c.DBAutoMigrate)
	c.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.DBMaxOpenConns)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.DynamoDBEndpoint = getEnv("DYNAMODB_ENDPOINT", c.DynamoDBEndpoint)
	c.GSI1IndexName = getEnv("GSI1_INDEX_NAME", c.GSI1IndexName)
	c.GSI2IndexName = getEnv("GSI2_INDEX_NAME", c.GSI2IndexName)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.AuthMode = getEnv("AUTH_MODE", c.AuthMode)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)
	c.JWTAudience = getEnv("JWT_AUDIENCE", c.JWTAudience)
	c.JWTSigningMethod = getEnv("JWT_SIGNING_METHOD", c.JWTSigningMethod)
	c.JWTPublicKey = getEnv("JWT_PUBLIC_KEY", c.JWTPublicKey)
	c.JWTPrivateKey = getEnv("JWT_PRIVATE_KEY", c.JWTPrivateKey)

	c.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)

	c.Breaker.MaxRequests = uint32(getEnvInt("BREAKER_MAX_REQUESTS", int(c.Breaker.MaxRequests)))
	c.Breaker.Interval = getEnvDuration("BREAKER_INTERVAL", c.Breaker.Interval)
	c.Breaker.Timeout = getEnvDuration("BREAKER_TIMEOUT", c.Breaker.Timeout)
	c.Breaker.FailureThreshold = getEnvFloat("BREAKER_FAILURE_THRESHOLD", c.Breaker.FailureThreshold)
	c.Breaker.MinRequests = uint32(getEnvInt("BREAKER_MIN_REQUESTS", int(c.Breaker.MinRequests)))
	c.Breaker.CallTimeout = getEnvDuration("BREAKER_CALL_TIMEOUT", c.Breaker.CallTimeout)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
		if c.IsProduction() {
			return fmt.Errorf("the memory storage backend is not allowed in production")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case StorageDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
		}
	case "":
		return fmt.Errorf("STORAGE_BACKEND is required in production")
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.AuthMode {
	case AuthGateway:
	case AuthJWT:
		if c.JWTSigningMethod == "RS256" {
			if c.JWTPublicKey == "" {
				return fmt.Errorf("JWT_PUBLIC_KEY is required for RS256")
			}
		} else if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt (set AUTH_MODE=gateway behind a trusted authorizer)")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	if c.Breaker.FailureThreshold <= 0 || c.Breaker.FailureThreshold > 1 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be in (0, 1], got %v", c.Breaker.FailureThreshold)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations like "5s"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
