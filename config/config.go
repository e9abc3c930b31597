package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageBolt   = "bolt"
	StorageRedis  = "redis"
)

// Trace exporters.
const (
	TraceNone   = "none"
	TraceStdout = "stdout"
)

// Config holds the portal client configuration.
type Config struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	LogPretty      bool          `mapstructure:"log_pretty" yaml:"log_pretty"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // 0 means no client timeout

	StorageBackend string        `mapstructure:"storage_backend" yaml:"storage_backend"`
	StoragePath    string        `mapstructure:"storage_path" yaml:"storage_path"`
	RedisAddr      string        `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix    string        `mapstructure:"redis_prefix" yaml:"redis_prefix"`
	SessionTTL     time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"` // 0 keeps the session until logout

	ClientRefilter bool   `mapstructure:"client_refilter" yaml:"client_refilter"`
	TraceExporter  string `mapstructure:"trace_exporter" yaml:"trace_exporter"`

	DevServerAddr  string `mapstructure:"dev_server_addr" yaml:"dev_server_addr"`
	CameraMaxWidth int    `mapstructure:"camera_max_width" yaml:"camera_max_width"`
}

// DefaultStoragePath is where the bolt backend keeps the session.
func DefaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".citizenportal", "session.db")
	}
	return filepath.Join(home, ".citizenportal", "session.db")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "http://localhost:5000/api")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)
	v.SetDefault("request_timeout", "0s")
	v.SetDefault("storage_backend", StorageBolt)
	v.SetDefault("storage_path", DefaultStoragePath())
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_prefix", "citizenportal")
	v.SetDefault("session_ttl", "0s")
	v.SetDefault("client_refilter", true)
	v.SetDefault("trace_exporter", TraceNone)
	v.SetDefault("dev_server_addr", "127.0.0.1:5000")
	v.SetDefault("camera_max_width", 640)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadConfig reads portal.yaml from the working directory, ~/.citizenportal
// or /etc/citizenportal, then applies PORTAL_* environment variables over
// the defaults. A missing config file is not an error.
func LoadConfig() (*Config, error) {
	v := newViper()
	v.SetConfigName("portal")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.citizenportal")
	v.AddConfigPath("/etc/citizenportal/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects values the client cannot act on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("config: base_url must not be empty")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid base_url %q", c.BaseURL)
	}

	switch c.StorageBackend {
	case StorageMemory, StorageBolt, StorageRedis:
	default:
		return fmt.Errorf("config: unknown storage_backend %q", c.StorageBackend)
	}

	if c.StorageBackend == StorageBolt && c.StoragePath == "" {
		return errors.New("config: storage_path is required for the bolt backend")
	}

	switch c.TraceExporter {
	case TraceNone, TraceStdout:
	default:
		return fmt.Errorf("config: unknown trace_exporter %q", c.TraceExporter)
	}

	if c.RequestTimeout < 0 || c.SessionTTL < 0 {
		return errors.New("config: durations must not be negative")
	}

	return nil
}
