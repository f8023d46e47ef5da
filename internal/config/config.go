// Package config loads the relay configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigPathEnv names the environment variable that points at the YAML file.
	ConfigPathEnv     = "ERASURE_RELAY_CONFIG"
	defaultConfigFile = "config.yaml"
	dotEnvFile        = ".env.local"

	defaultListenAddr = ":8080"
	defaultDSN        = "sqlite://data/erasure-relay.db"
)

// AppConfig carries process-level options collected from flags.
type AppConfig struct {
	ConfigPath string
}

// DatabaseConfig locates the rule store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig guards the admin API.
type AuthConfig struct {
	// Password is the admin credential, either plaintext or a bcrypt hash.
	Password                    string `yaml:"password"`
	AllowedIP                   string `yaml:"allowed-ip"`
	MaxLoginAttempts            int    `yaml:"max-login-attempts"`
	LoginAttemptsTimeoutMinutes int    `yaml:"login-attempts-timeout"`
}

// LoginWindow returns the brute-force window.
func (a AuthConfig) LoginWindow() time.Duration {
	return time.Duration(a.LoginAttemptsTimeoutMinutes) * time.Minute
}

// RedisConfig enables the shared login-attempt counter when URL is set.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// DataStoreConfig configures the outbound delete client.
type DataStoreConfig struct {
	BaseURL               string `yaml:"base-url"`
	RequestTimeoutSeconds int    `yaml:"request-timeout"`
}

// RequestTimeout returns the per-call timeout.
func (d DataStoreConfig) RequestTimeout() time.Duration {
	return time.Duration(d.RequestTimeoutSeconds) * time.Second
}

// LoggingConfig configures logrus and the optional rotating file sink.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// RetentionConfig schedules error-log pruning.
type RetentionConfig struct {
	IntervalMinutes int `yaml:"interval-minutes"`
	BatchSize       int `yaml:"batch-size"`
}

// Config is the full relay configuration.
type Config struct {
	ListenAddr string          `yaml:"listen-addr"`
	Database   DatabaseConfig  `yaml:"database"`
	Auth       AuthConfig      `yaml:"auth"`
	Redis      RedisConfig     `yaml:"redis"`
	DataStore  DataStoreConfig `yaml:"datastore"`
	Logging    LoggingConfig   `yaml:"logging"`
	Retention  RetentionConfig `yaml:"retention"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ListenAddr: defaultListenAddr,
		Database:   DatabaseConfig{DSN: defaultDSN},
		Auth: AuthConfig{
			AllowedIP:                   "0.0.0.0",
			MaxLoginAttempts:            5,
			LoginAttemptsTimeoutMinutes: 15,
		},
		DataStore: DataStoreConfig{RequestTimeoutSeconds: 15},
		Logging:   LoggingConfig{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 30},
		Retention: RetentionConfig{IntervalMinutes: 60, BatchSize: 5000},
	}
}

// ResolveConfigPath chooses the explicit path, then the environment, then config.yaml.
func ResolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnv)); p != "" {
		return p
	}
	return defaultConfigFile
}

// Load reads the YAML file at path (a missing file is not an error), loads .env.local
// from the working directory and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, errRead := os.ReadFile(path)
		switch {
		case errRead == nil:
			if errYAML := yaml.Unmarshal(raw, &cfg); errYAML != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, errYAML)
			}
		case errors.Is(errRead, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, errRead)
		}
	}
	if errEnv := loadDotEnv(filepath.Join(".", dotEnvFile)); errEnv != nil {
		return nil, errEnv
	}
	if errOverride := applyEnv(&cfg); errOverride != nil {
		return nil, errOverride
	}
	cfg.normalize()
	return &cfg, nil
}

// LoadDatabaseDSN returns only the database DSN from the config at path.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, err := Load(path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return "", errors.New("config: database dsn is empty")
	}
	return cfg.Database.DSN, nil
}

// loadDotEnv sets variables from file without overriding ones already present.
func loadDotEnv(file string) error {
	if _, errStat := os.Stat(file); errStat != nil {
		if errors.Is(errStat, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", file, errStat)
	}
	if errLoad := godotenv.Load(file); errLoad != nil {
		return fmt.Errorf("config: load %s: %w", file, errLoad)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	setInt := func(name string, dst *int) error {
		v, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s must be an integer: %w", name, err)
		}
		*dst = n
		return nil
	}

	setString("LISTEN_ADDR", &cfg.ListenAddr)
	setString("DATABASE_DSN", &cfg.Database.DSN)
	setString("AUTH_PASSWORD", &cfg.Auth.Password)
	setString("ALLOWED_IP", &cfg.Auth.AllowedIP)
	setString("REDIS_URL", &cfg.Redis.URL)
	setString("DATASTORE_BASE_URL", &cfg.DataStore.BaseURL)
	setString("LOG_LEVEL", &cfg.Logging.Level)
	if err := setInt("MAX_LOGIN_ATTEMPTS", &cfg.Auth.MaxLoginAttempts); err != nil {
		return err
	}
	return setInt("LOGIN_ATTEMPTS_TIMEOUT", &cfg.Auth.LoginAttemptsTimeoutMinutes)
}

func (c *Config) normalize() {
	def := Default()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.Auth.MaxLoginAttempts <= 0 {
		c.Auth.MaxLoginAttempts = def.Auth.MaxLoginAttempts
	}
	if c.Auth.LoginAttemptsTimeoutMinutes <= 0 {
		c.Auth.LoginAttemptsTimeoutMinutes = def.Auth.LoginAttemptsTimeoutMinutes
	}
	if c.DataStore.RequestTimeoutSeconds <= 0 {
		c.DataStore.RequestTimeoutSeconds = def.DataStore.RequestTimeoutSeconds
	}
	if c.Retention.IntervalMinutes <= 0 {
		c.Retention.IntervalMinutes = def.Retention.IntervalMinutes
	}
	if c.Retention.BatchSize <= 0 {
		c.Retention.BatchSize = def.Retention.BatchSize
	}
}
