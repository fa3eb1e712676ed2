// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge an optional YAML file with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Empty outside production selects the in-memory repositories.
	DatabaseURL   string `koanf:"database_url"`
	RunMigrations bool   `koanf:"run_migrations"`

	// JWT Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Redis backs the shared rate limiter. Optional.
	RedisURL string `koanf:"redis_url"`

	// S3-compatible object storage for memory media. Optional as a group.
	S3BucketName      string `koanf:"s3_bucket_name"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3Region          string `koanf:"s3_region"`
	S3PublicBaseURL   string `koanf:"s3_public_base_url"`
	MaxUploadSizeMB   int    `koanf:"media_max_upload_size_mb"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`

	// Presence
	ShareTTLHours int `koanf:"share_ttl_hours"`

	// Browser origins allowed to call the API cross-origin. Empty disables CORS.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL       = errors.New("DATABASE_URL is required in production")
	ErrMissingJWTSecret         = errors.New("JWT_SECRET is required")
	ErrShortJWTSecret           = errors.New("JWT_SECRET must be at least 32 characters")
	ErrMissingS3BucketName      = errors.New("S3_BUCKET_NAME is required")
	ErrMissingS3AccessKeyID     = errors.New("S3_ACCESS_KEY_ID is required")
	ErrMissingS3SecretAccessKey = errors.New("S3_SECRET_ACCESS_KEY is required")
	ErrMissingS3Endpoint        = errors.New("S3_ENDPOINT is required")
	ErrInvalidSampleRate        = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidShareTTL          = errors.New("SHARE_TTL_HOURS must be at least 1")
	ErrInvalidPort              = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultMaxUploadSizeMB   = 25
	DefaultS3Region          = "auto"
	DefaultTracingExporter   = "otlp-http"
	DefaultTracingSampleRate = 0.1
	DefaultShareTTLHours     = 4
	minJWTSecretLength       = 32
)

// Load reads configuration from an optional YAML file and environment variables.
// Environment variables take precedence over file values.
// Returns the loaded config and the validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := getEnvIntOrDefault([]string{"CAMPUS_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	maxUpload, err := getEnvIntOrDefault([]string{"MEDIA_MAX_UPLOAD_SIZE_MB"}, k.Int("media_max_upload_size_mb"), DefaultMaxUploadSizeMB)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	shareTTL, err := getEnvIntOrDefault([]string{"SHARE_TTL_HOURS"}, k.Int("share_ttl_hours"), DefaultShareTTLHours)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k, "tracing_sample_rate", DefaultTracingSampleRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:              port,
		Env:               getEnvOrDefault([]string{"CAMPUS_ENV", "ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:       getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RunMigrations:     getEnvBool("RUN_MIGRATIONS", k, "run_migrations", true),
		JWTSecret:         getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret: getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		RedisURL:          getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		S3BucketName:      getEnvOrKoanf("S3_BUCKET_NAME", k, "s3_bucket_name"),
		S3AccessKeyID:     getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey: getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		S3Endpoint:        getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		S3Region:          getEnvOrDefault([]string{"S3_REGION"}, k.String("s3_region"), DefaultS3Region),
		S3PublicBaseURL:   getEnvOrKoanf("S3_PUBLIC_BASE_URL", k, "s3_public_base_url"),
		MaxUploadSizeMB:   maxUpload,
		TracingEnabled:    getEnvBool("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:   getEnvOrDefault([]string{"TRACING_EXPORTER"}, k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:      getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingSampleRate: sampleRate,
		TracingInsecure:   getEnvBool("TRACING_INSECURE", k, "tracing_insecure", false),
		ShareTTLHours:     shareTTL,
	}
	cfg.CORSAllowedOrigins = splitList(getEnvOrDefault([]string{"CORS_ALLOWED_ORIGINS"}, strings.Join(k.Strings("cors_allowed_origins"), ","), ""))

	return cfg, append(loadErrs, cfg.Validate()...)
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// S3Enabled reports whether object storage is configured.
func (c *Config) S3Enabled() bool {
	return c.S3BucketName != ""
}

// Validate checks required values and ranges.
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" && c.IsProduction() {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	switch {
	case c.JWTSecret == "":
		errs = append(errs, ErrMissingJWTSecret)
	case len(c.JWTSecret) < minJWTSecretLength:
		errs = append(errs, ErrShortJWTSecret)
	}

	// S3 is all-or-nothing.
	if c.S3BucketName != "" || c.S3AccessKeyID != "" || c.S3SecretAccessKey != "" || c.S3Endpoint != "" {
		if c.S3BucketName == "" {
			errs = append(errs, ErrMissingS3BucketName)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretAccessKey)
		}
		if c.S3Endpoint == "" {
			errs = append(errs, ErrMissingS3Endpoint)
		}
	}

	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	if c.ShareTTLHours < 1 {
		errs = append(errs, ErrInvalidShareTTL)
	}

	return errs
}

// LogSummary returns the configuration with secrets masked, for startup logging.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                     strconv.Itoa(c.Port),
		"env":                      c.Env,
		"database_url":             maskDatabaseURL(c.DatabaseURL),
		"run_migrations":           strconv.FormatBool(c.RunMigrations),
		"jwt_secret":               maskSecret(c.JWTSecret),
		"jwt_previous_secret":      maskSecret(c.JWTPreviousSecret),
		"redis_url":                maskDatabaseURL(c.RedisURL),
		"s3_bucket_name":           c.S3BucketName,
		"s3_access_key_id":         maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key":     maskSecret(c.S3SecretAccessKey),
		"s3_endpoint":              c.S3Endpoint,
		"s3_region":                c.S3Region,
		"media_max_upload_size_mb": strconv.Itoa(c.MaxUploadSizeMB),
		"tracing_enabled":          strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":         c.TracingExporter,
		"otlp_endpoint":            c.OTLPEndpoint,
		"tracing_sample_rate":      strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
		"share_ttl_hours":          strconv.Itoa(c.ShareTTLHours),
		"cors_allowed_origins":     strings.Join(c.CORSAllowedOrigins, ","),
	}
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the first non-empty env var, then the koanf value, then the default.
func getEnvOrDefault(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault parses the first set env var as an int, falling back to
// the koanf value and then the default. A set but malformed value is an error.
func getEnvIntOrDefault(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				if key == "PORT" || key == "CAMPUS_PORT" {
					return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
				}
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvBool accepts true/1/yes/on and false/0/no/off; anything else keeps the lower-precedence value.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	switch strings.ToLower(os.Getenv(envKey)) {
	case "true", "1", "yes", "on":
		result = true
	case "false", "0", "no", "off":
		result = false
	}
	return result
}

// maskSecret shows the first 4 characters of secrets of 8+ characters.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL (postgres://, redis://).
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.LastIndex(rest, "@")
	if atIndex == -1 {
		return s
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s
	}

	return s[:schemeEnd+3] + rest[:colonIndex] + ":****" + rest[atIndex:]
}
