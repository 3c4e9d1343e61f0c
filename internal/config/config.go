package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	DefaultPort         = 3003
	DefaultPasswordCost = 10
)

type Config struct {
	Environment string `toml:"-"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`
	// storage
	DatabaseURL string `toml:"database_url"`
	// auth
	TokenSecret  string `toml:"-"`
	PasswordCost int    `toml:"password_cost"`
	// http
	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`
	// metrics
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
}

type Toml struct {
	Development *Config
	Production  *Config
	Test        *Config
}

// NormalizeEnv maps the accepted env aliases to the canonical env names.
func NormalizeEnv(env string) (string, error) {
	switch strings.ToLower(env) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return "", fmt.Errorf("unknown env: %s", env)
	}
}

func (t *Toml) Get(env string) (*Config, error) {
	normalized, err := NormalizeEnv(env)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch normalized {
	case EnvDevelopment:
		cfg = t.Development
	case EnvProduction:
		cfg = t.Production
	case EnvTest:
		cfg = t.Test
	}
	if cfg == nil {
		return nil, fmt.Errorf("config section for env [%s] missing", normalized)
	}

	cfg.Environment = normalized
	return cfg, nil
}

// Load reads the TOML file, picks the section for env and applies the
// environment overrides (see ApplyEnv).
func Load(env, configPath string) (*Config, error) {
	var tomlConfig Toml
	if _, err := toml.DecodeFile(configPath, &tomlConfig); err != nil {
		return nil, fmt.Errorf("decode config file [%s]: %w", configPath, err)
	}

	cfg, err := tomlConfig.Get(env)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, cfg.Validate()
}

// ApplyEnv overlays values coming from the process environment.
// The test environment reads TEST_DATABASE_URL and TEST_SECRET instead of
// DATABASE_URL and SECRET.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if portStr, ok := lookup("PORT"); ok && portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid PORT [%s]: %w", portStr, err)
		}
		c.Port = port
	}

	dbURLKey, secretKey := "DATABASE_URL", "SECRET"
	if c.Environment == EnvTest {
		dbURLKey, secretKey = "TEST_DATABASE_URL", "TEST_SECRET"
	}
	if dbURL, ok := lookup(dbURLKey); ok && dbURL != "" {
		c.DatabaseURL = dbURL
	}
	if secret, ok := lookup(secretKey); ok {
		c.TokenSecret = secret
	}

	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.PasswordCost == 0 {
		c.PasswordCost = DefaultPasswordCost
	}

	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database url not set"))
	}
	if c.TokenSecret == "" {
		errs = append(errs, errors.New("token secret not set"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	return errors.Join(errs...)
}
