package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CERT_APP_PORT.
const EnvPrefix = "CERT"

// Storage drivers.
const (
	StorageFS    = "fs"
	StorageMinio = "minio"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chromium ChromiumConfig `mapstructure:"chromium"`
	QR       QRConfig       `mapstructure:"qr"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Port     int    `mapstructure:"port"`
	Env      string `mapstructure:"env"`
	BasePath string `mapstructure:"base_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type StorageConfig struct {
	Driver        string        `mapstructure:"driver"` // "fs" or "minio"
	Root          string        `mapstructure:"root"`
	Prefix        string        `mapstructure:"prefix"`
	BaseURL       string        `mapstructure:"base_url"`
	SigningSecret string        `mapstructure:"signing_secret"`
	SignedURLTTL  time.Duration `mapstructure:"signed_url_ttl"`
	Minio         MinioConfig   `mapstructure:"minio"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// RedisConfig enables cross-process document locks when Addr is set.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	LockPrefix string        `mapstructure:"lock_prefix"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

type ChromiumConfig struct {
	BrowserPath string        `mapstructure:"browser_path"`
	Headless    bool          `mapstructure:"headless"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Args        []string      `mapstructure:"args"`
	// ExternalAssets is "block" or "allow". Blocked pages may still load
	// from AllowedHosts.
	ExternalAssets string   `mapstructure:"external_assets"`
	AllowedHosts   []string `mapstructure:"allowed_hosts"`
}

type QRConfig struct {
	ServiceURL    string        `mapstructure:"service_url"`
	VerifyBaseURL string        `mapstructure:"verify_base_url"`
	Concurrency   int           `mapstructure:"concurrency"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// BatchConfig bounds queued batch jobs.
type BatchConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

var defaults = map[string]any{
	"app.name":                 "certificate-server",
	"app.port":                 8080,
	"app.env":                  "development",
	"app.base_path":            "/api/certificates",
	"logging.level":            "info",
	"logging.format":           "json",
	"database.dsn":             "file:certificates.db?cache=shared",
	"storage.driver":           StorageFS,
	"storage.root":             "./data/certificates",
	"storage.prefix":           "",
	"storage.base_url":         "",
	"storage.signing_secret":   "",
	"storage.signed_url_ttl":   "15m",
	"storage.minio.endpoint":   "",
	"storage.minio.access_key": "",
	"storage.minio.secret_key": "",
	"storage.minio.bucket":     "certificates",
	"storage.minio.use_ssl":    false,
	"redis.addr":               "",
	"redis.password":           "",
	"redis.db":                 0,
	"redis.lock_prefix":        "certificate:lock:",
	"redis.lock_ttl":           "2m",
	"chromium.browser_path":    "",
	"chromium.headless":        true,
	"chromium.timeout":         "30s",
	"chromium.args":            []string{"--no-sandbox", "--disable-dev-shm-usage"},
	"chromium.external_assets": "block",
	"chromium.allowed_hosts":   []string{},
	"qr.service_url":           "",
	"qr.verify_base_url":       "",
	"qr.concurrency":           4,
	"qr.timeout":               "10s",
	"batch.timeout":            "30m",
}

// Load reads path (or config.yaml from . and ./config when path is empty)
// and applies CERT_ environment overrides. A missing default config file is
// not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.App.Port <= 0 {
		return fmt.Errorf("app.port must be positive, got %d", c.App.Port)
	}
	switch c.Storage.Driver {
	case StorageFS:
		if c.Storage.Root == "" {
			return errors.New("storage.root is required for the fs driver")
		}
	case StorageMinio:
		if c.Storage.Minio.Endpoint == "" || c.Storage.Minio.Bucket == "" {
			return errors.New("storage.minio.endpoint and storage.minio.bucket are required for the minio driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch strings.ToLower(c.Chromium.ExternalAssets) {
	case "", "block", "allow":
	default:
		return fmt.Errorf("chromium.external_assets must be block or allow, got %q", c.Chromium.ExternalAssets)
	}
	if c.QR.Concurrency < 0 {
		return errors.New("qr.concurrency must not be negative")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}
