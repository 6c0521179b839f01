package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendFS = "fs"
	BackendS3 = "s3"

	OrphanKeep   = "keep"
	OrphanRemove = "remove"
)

type Config struct {
	ListenAddr      string        `yaml:"listen_addr"`
	TLSEnabled      bool          `yaml:"tls_enabled"`
	TLSAddr         string        `yaml:"tls_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	StorageBackend   string `yaml:"storage_backend"`
	UploadDir        string `yaml:"upload_dir"`
	PublicPathPrefix string `yaml:"public_path_prefix"`
	MaxUploadSize    int64  `yaml:"max_upload_size"`

	MaxWidth     int    `yaml:"max_width"`
	MaxHeight    int    `yaml:"max_height"`
	Quality      int    `yaml:"quality"`
	OrphanPolicy string `yaml:"orphan_policy"`

	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3Prefix    string `yaml:"s3_prefix"`

	RateLimit       int           `yaml:"rate_limit"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`

	AccessLogDB      bool   `yaml:"access_log_db"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresDatabase string `yaml:"postgres_database"`
	PostgresSSLMode  string `yaml:"postgres_ssl_mode"`

	MetricsNamespace string `yaml:"metrics_namespace"`
	LogLevel         string `yaml:"log_level"`
	LogFormat        string `yaml:"log_format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		ListenAddr:       ":8080",
		TLSAddr:          ":8443",
		ShutdownTimeout:  10 * time.Second,
		StorageBackend:   BackendFS,
		UploadDir:        "uploads",
		PublicPathPrefix: "/uploads/",
		MaxUploadSize:    10 << 20,
		MaxWidth:         800,
		MaxHeight:        800,
		Quality:          80,
		OrphanPolicy:     OrphanKeep,
		S3Bucket:         "imgpress",
		S3Region:         "us-east-1",
		RateLimit:        100,
		RateLimitWindow:  time.Minute,
		PostgresUser:     "imgpress",
		PostgresPassword: "password",
		PostgresHost:     "localhost",
		PostgresPort:     "5432",
		PostgresDatabase: "imgpress",
		PostgresSSLMode:  "disable",
		MetricsNamespace: "imgpress",
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load layers defaults, the YAML file named by CONFIG_FILE, and environment
// variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.TLSEnabled = getEnvBool("TLS_ENABLED", cfg.TLSEnabled)
	cfg.TLSAddr = getEnv("TLS_ADDR", cfg.TLSAddr)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", cfg.StorageBackend))
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.PublicPathPrefix = getEnv("PUBLIC_PATH_PREFIX", cfg.PublicPathPrefix)
	cfg.MaxUploadSize = int64(getEnvInt("MAX_UPLOAD_SIZE", int(cfg.MaxUploadSize)))

	cfg.MaxWidth = getEnvInt("COMPRESS_MAX_WIDTH", cfg.MaxWidth)
	cfg.MaxHeight = getEnvInt("COMPRESS_MAX_HEIGHT", cfg.MaxHeight)
	cfg.Quality = getEnvInt("COMPRESS_QUALITY", cfg.Quality)
	cfg.OrphanPolicy = strings.ToLower(getEnv("ORPHAN_POLICY", cfg.OrphanPolicy))

	cfg.S3Bucket = getEnv("S3_BUCKET", cfg.S3Bucket)
	cfg.S3Region = getEnv("AWS_REGION", cfg.S3Region)
	cfg.S3Endpoint = getEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3AccessKey = getEnv("AWS_ACCESS_KEY_ID", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("AWS_SECRET_ACCESS_KEY", cfg.S3SecretKey)
	cfg.S3Prefix = getEnv("S3_PREFIX", cfg.S3Prefix)

	cfg.RateLimit = getEnvInt("RATE_LIMIT", cfg.RateLimit)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)

	cfg.AccessLogDB = getEnvBool("ACCESS_LOG_DB", cfg.AccessLogDB)
	cfg.PostgresUser = getEnv("POSTGRES_USER", cfg.PostgresUser)
	cfg.PostgresPassword = getEnv("POSTGRES_PASSWORD", cfg.PostgresPassword)
	cfg.PostgresHost = getEnv("POSTGRES_HOST", cfg.PostgresHost)
	cfg.PostgresPort = getEnv("POSTGRES_PORT", cfg.PostgresPort)
	cfg.PostgresDatabase = getEnv("POSTGRES_DATABASE", cfg.PostgresDatabase)
	cfg.PostgresSSLMode = getEnv("POSTGRES_SSL_MODE", cfg.PostgresSSLMode)

	cfg.MetricsNamespace = getEnv("METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendFS:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR must be set for the fs backend")
		}
	case BackendS3:
		if c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3 bucket and AWS credentials must be provided for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	switch c.OrphanPolicy {
	case OrphanKeep, OrphanRemove:
	default:
		return fmt.Errorf("unknown orphan policy %q", c.OrphanPolicy)
	}

	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be within 1..100, got %d", c.Quality)
	}
	if c.MaxWidth < 1 || c.MaxHeight < 1 {
		return fmt.Errorf("bounding box must be positive, got %dx%d", c.MaxWidth, c.MaxHeight)
	}
	if c.MaxUploadSize < 1 {
		return fmt.Errorf("max upload size must be positive")
	}
	if !strings.HasPrefix(c.PublicPathPrefix, "/") || !strings.HasSuffix(c.PublicPathPrefix, "/") {
		return fmt.Errorf("public path prefix must start and end with '/', got %q", c.PublicPathPrefix)
	}
	return nil
}

// PostgresDSN renders the connection string for the access log database.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDatabase, c.PostgresSSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
