package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level folio configuration file.
type YAMLConfig struct {
	Env       string          `yaml:"env"`
	DataDir   string          `yaml:"data_dir,omitempty"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Redis     RedisConfig     `yaml:"redis"`
	Store     StoreConfig     `yaml:"store"`
	Log       LoggingConfig   `yaml:"log"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	MaxBodySize     string   `yaml:"max_body_size"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
	TrustProxy      bool     `yaml:"trust_proxy"`
}

// AuthConfig controls token issuance and the session cookie.
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret"`
	TokenTTL   string `yaml:"token_ttl"`
	CookieName string `yaml:"cookie_name"`
	BcryptCost int    `yaml:"bcrypt_cost"`
}

// RateLimitConfig controls the login limiter and the global API limiter.
type RateLimitConfig struct {
	LoginMaxAttempts int    `yaml:"login_max_attempts"`
	LoginWindow      string `yaml:"login_window"`
	SweepInterval    string `yaml:"sweep_interval"`
	KeyBy            string `yaml:"key_by"`
	Store            string `yaml:"store"`
	APIRequests      int    `yaml:"api_requests"`
	APIWindow        string `yaml:"api_window"`
}

// RedisConfig locates the shared attempt store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StoreConfig selects the database holding admins and content.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Unknown keys are rejected.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseYAMLConfig(data)
}

// ParseYAMLConfig parses YAML bytes the same way LoadYAMLConfig does.
func ParseYAMLConfig(data []byte) (*YAMLConfig, error) {
	content := os.ExpandEnv(string(data))

	var cfg YAMLConfig
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with the defaults the
// Settings loader applies.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Env: EnvDevelopment,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			MaxBodySize:     "10MiB",
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Auth: AuthConfig{
			TokenTTL:   "720h",
			CookieName: "adminToken",
			BcryptCost: 12,
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts: 5,
			LoginWindow:      "15m",
			SweepInterval:    "1m",
			KeyBy:            "email",
			Store:            "memory",
			APIRequests:      100,
			APIWindow:        "15m",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Log: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

const defaultHeader = `# Folio configuration
# Every key can be overridden with an environment variable, e.g.
# FOLIO_AUTH_JWT_SECRET or FOLIO_SERVER_PORT.
#
# auth.jwt_secret is required when env is "production".
# ratelimit.key_by: email | ip | email+ip
# ratelimit.store:  memory | redis
# store.driver:     sqlite | postgres | mysql

`

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultYAMLConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, append([]byte(defaultHeader), data...), 0600)
}
