// Package config resolves runtime configuration: built-in defaults, then the
// YAML file, then environment overrides, then struct validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/default.yaml"

// Storage drivers.
const (
	DriverAWS    = "aws"
	DriverMemory = "memory"
)

// Session stores.
const (
	SessionCookie = "cookie"
	SessionRedis  = "redis"
)

// Config is the resolved runtime configuration of every process.
type Config struct {
	ServiceID string `yaml:"service_id" validate:"required"`

	HTTP      HTTPConfig      `yaml:"http"`
	AWS       AWSConfig       `yaml:"aws"`
	Storage   StorageConfig   `yaml:"storage"`
	Session   SessionConfig   `yaml:"session"`
	Upload    UploadConfig    `yaml:"upload"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Port              int           `yaml:"port" validate:"min=1,max=65535"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins       []string      `yaml:"cors_origins" validate:"dive,url"`
}

type AWSConfig struct {
	Region string `yaml:"region" validate:"required"`
	// Endpoint points every client at a compatible local service.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
}

type StorageConfig struct {
	Driver        string        `yaml:"driver" validate:"oneof=aws memory"`
	Bucket        string        `yaml:"bucket" validate:"required"`
	FilesTable    string        `yaml:"files_table" validate:"required"`
	LogsTable     string        `yaml:"logs_table" validate:"required"`
	URLMode       string        `yaml:"url_mode" validate:"oneof=public presigned"`
	PublicBaseURL string        `yaml:"public_base_url" validate:"omitempty,url"`
	PresignTTL    time.Duration `yaml:"presign_ttl" validate:"gte=0"`
}

type SessionConfig struct {
	Name string `yaml:"name" validate:"required"`
	// Secret is checked when the session store is built, so processes
	// without sessions can run without one.
	Secret        string        `yaml:"secret" validate:"omitempty,min=16"`
	Store         string        `yaml:"store" validate:"oneof=cookie redis"`
	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Store redis"`
	RedisUsername string        `yaml:"redis_username"`
	RedisPassword string        `yaml:"redis_password"`
	MaxAge        time.Duration `yaml:"max_age" validate:"gte=0"`
	Secure        bool          `yaml:"secure"`
}

type UploadConfig struct {
	// MaxBytes disables the cap when zero.
	MaxBytes int64 `yaml:"max_bytes" validate:"gte=0"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" validate:"gte=0"`
	Burst int     `yaml:"burst" validate:"gte=0"`
}

type ReconcileConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
	Grace    time.Duration `yaml:"grace" validate:"gt=0"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Defaults returns the configuration used when neither the file nor the
// environment says otherwise.
func Defaults() Config {
	return Config{
		ServiceID: "mycloud",
		HTTP: HTTPConfig{
			Port:              5000,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		AWS: AWSConfig{Region: "ap-south-1"},
		Storage: StorageConfig{
			Driver:     DriverAWS,
			Bucket:     "mycloud-storage-swarup",
			FilesTable: "mycloud-files-metadata",
			LogsTable:  "mycloud-activity-logs",
			URLMode:    "public",
			PresignTTL: 5 * time.Minute,
		},
		Session: SessionConfig{
			Name:   "mycloud_session",
			Store:  SessionCookie,
			MaxAge: 30 * 24 * time.Hour,
		},
		Reconcile: ReconcileConfig{Grace: 15 * time.Minute},
		Log:       LogConfig{Level: "info"},
	}
}

// Load resolves the configuration. A missing file at path is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(storageRules, StorageConfig{})
	return v
}

// storageRules holds the checks that span StorageConfig fields. In-memory
// objects have no address of their own, so download links need a base URL.
func storageRules(sl validator.StructLevel) {
	s := sl.Current().Interface().(StorageConfig)
	if s.Driver == DriverMemory && s.PublicBaseURL == "" {
		sl.ReportError(s.PublicBaseURL, "PublicBaseURL", "PublicBaseURL", "required_with_memory_driver", "")
	}
}

// Validate checks cfg against its struct tags.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.HTTP.Port = envInt("HTTP_PORT", envInt("PORT", cfg.HTTP.Port))
	cfg.HTTP.CORSOrigins = envCSV("CORS_ORIGINS", cfg.HTTP.CORSOrigins)

	cfg.AWS.Region = envOrDefault("AWS_REGION", cfg.AWS.Region)
	cfg.AWS.Endpoint = envOrDefault("AWS_ENDPOINT_URL", cfg.AWS.Endpoint)

	cfg.Storage.Driver = strings.ToLower(envOrDefault("STORAGE_DRIVER", cfg.Storage.Driver))
	cfg.Storage.Bucket = envOrDefault("S3_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.FilesTable = envOrDefault("FILES_TABLE", cfg.Storage.FilesTable)
	cfg.Storage.LogsTable = envOrDefault("LOGS_TABLE", cfg.Storage.LogsTable)
	cfg.Storage.URLMode = strings.ToLower(envOrDefault("DOWNLOAD_URL_MODE", cfg.Storage.URLMode))
	cfg.Storage.PublicBaseURL = envOrDefault("PUBLIC_BASE_URL", cfg.Storage.PublicBaseURL)
	cfg.Storage.PresignTTL = envSeconds("PRESIGN_TTL_SECONDS", cfg.Storage.PresignTTL)

	cfg.Session.Secret = envOrDefault("SESSION_SECRET", cfg.Session.Secret)
	cfg.Session.Store = strings.ToLower(envOrDefault("SESSION_STORE", cfg.Session.Store))
	cfg.Session.RedisAddr = envOrDefault("REDIS_ADDR", cfg.Session.RedisAddr)
	cfg.Session.RedisUsername = envOrDefault("REDIS_USERNAME", cfg.Session.RedisUsername)
	cfg.Session.RedisPassword = envOrDefault("REDIS_PASSWORD", cfg.Session.RedisPassword)
	cfg.Session.Secure = envBool("SESSION_SECURE", cfg.Session.Secure)

	cfg.Upload.MaxBytes = int64(envInt("MAX_UPLOAD_BYTES", int(cfg.Upload.MaxBytes)))

	cfg.RateLimit.RPS = envFloat("RATE_LIMIT_RPS", cfg.RateLimit.RPS)
	cfg.RateLimit.Burst = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)

	cfg.Reconcile.Interval = envSeconds("RECONCILE_INTERVAL_SECONDS", cfg.Reconcile.Interval)
	cfg.Reconcile.Grace = envSeconds("RECONCILE_GRACE_SECONDS", cfg.Reconcile.Grace)

	cfg.Log.Level = strings.ToLower(envOrDefault("LOG_LEVEL", cfg.Log.Level))
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt falls back on empty or unparsable values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func envSeconds(name string, fallback time.Duration) time.Duration {
	return time.Duration(envInt(name, int(fallback.Seconds()))) * time.Second
}

func envBool(name string, fallback bool) bool {
	switch os.Getenv(name) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV splits a comma-separated list and drops empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
