package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// DevJWTSecret signs tokens when no secret is configured outside production.
const DevJWTSecret = "folio-dev-secret-change-me"

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "FOLIO"

// Settings is the validated, typed view of the configuration.
type Settings struct {
	Env     string
	DataDir string

	Server struct {
		Host            string
		Port            int
		MaxBodySize     int64
		ShutdownTimeout time.Duration
		CORSOrigins     []string
		TrustProxy      bool
	}

	Auth struct {
		JWTSecret  string
		TokenTTL   time.Duration
		CookieName string
		BcryptCost int
		// DevSecret is set when JWTSecret fell back to DevJWTSecret.
		DevSecret bool
	}

	RateLimit struct {
		LoginMaxAttempts int
		LoginWindow      time.Duration
		SweepInterval    time.Duration
		KeyBy            string
		Store            string
		APIRequests      int
		APIWindow        time.Duration
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Store struct {
		Driver string
		DSN    string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Bind prepares v for Load: environment overrides under EnvPrefix with
// dots mapped to underscores, plus every default from DefaultYAMLConfig.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultYAMLConfig()
	v.SetDefault("env", d.Env)
	v.SetDefault("data_dir", "")

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.trust_proxy", d.Server.TrustProxy)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("auth.cookie_name", d.Auth.CookieName)
	v.SetDefault("auth.bcrypt_cost", d.Auth.BcryptCost)

	v.SetDefault("ratelimit.login_max_attempts", d.RateLimit.LoginMaxAttempts)
	v.SetDefault("ratelimit.login_window", d.RateLimit.LoginWindow)
	v.SetDefault("ratelimit.sweep_interval", d.RateLimit.SweepInterval)
	v.SetDefault("ratelimit.key_by", d.RateLimit.KeyBy)
	v.SetDefault("ratelimit.store", d.RateLimit.Store)
	v.SetDefault("ratelimit.api_requests", d.RateLimit.APIRequests)
	v.SetDefault("ratelimit.api_window", d.RateLimit.APIWindow)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", "")

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the effective configuration from v and validates it. All
// problems are reported together.
func Load(v *viper.Viper) (*Settings, error) {
	var (
		s    Settings
		errs []error
	)

	duration := func(key string) time.Duration {
		raw := v.GetString(key)
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return 0
		}
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive", key))
		}
		return d
	}
	oneOf := func(key string, allowed ...string) string {
		val := strings.ToLower(strings.TrimSpace(v.GetString(key)))
		for _, a := range allowed {
			if val == a {
				return val
			}
		}
		errs = append(errs, fmt.Errorf("%s: %q is not one of %s", key, val, strings.Join(allowed, ", ")))
		return val
	}

	s.Env = oneOf("env", EnvDevelopment, EnvProduction)
	s.DataDir = v.GetString("data_dir")
	if s.DataDir == "" {
		home, _ := os.UserHomeDir()
		s.DataDir = filepath.Join(home, ".folio")
	}

	s.Server.Host = v.GetString("server.host")
	s.Server.Port = v.GetInt("server.port")
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", s.Server.Port))
	}
	size, err := humanize.ParseBytes(v.GetString("server.max_body_size"))
	if err != nil {
		errs = append(errs, fmt.Errorf("server.max_body_size: %w", err))
	}
	s.Server.MaxBodySize = int64(size)
	s.Server.ShutdownTimeout = duration("server.shutdown_timeout")
	s.Server.CORSOrigins = splitList(v.GetStringSlice("server.cors_origins"))
	s.Server.TrustProxy = v.GetBool("server.trust_proxy")

	s.Auth.JWTSecret = v.GetString("auth.jwt_secret")
	s.Auth.TokenTTL = duration("auth.token_ttl")
	s.Auth.CookieName = v.GetString("auth.cookie_name")
	if s.Auth.CookieName == "" {
		errs = append(errs, errors.New("auth.cookie_name: must not be empty"))
	}
	s.Auth.BcryptCost = v.GetInt("auth.bcrypt_cost")
	if s.Auth.BcryptCost < 10 || s.Auth.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("auth.bcrypt_cost: %d outside 10..14", s.Auth.BcryptCost))
	}
	if s.Auth.JWTSecret == "" {
		if s.Env == EnvProduction {
			errs = append(errs, errors.New("auth.jwt_secret: required in production"))
		} else {
			s.Auth.JWTSecret = DevJWTSecret
			s.Auth.DevSecret = true
		}
	}

	s.RateLimit.LoginMaxAttempts = v.GetInt("ratelimit.login_max_attempts")
	if s.RateLimit.LoginMaxAttempts < 1 {
		errs = append(errs, errors.New("ratelimit.login_max_attempts: must be at least 1"))
	}
	s.RateLimit.LoginWindow = duration("ratelimit.login_window")
	s.RateLimit.SweepInterval = duration("ratelimit.sweep_interval")
	s.RateLimit.KeyBy = oneOf("ratelimit.key_by", "email", "ip", "email+ip")
	s.RateLimit.Store = oneOf("ratelimit.store", "memory", "redis")
	s.RateLimit.APIRequests = v.GetInt("ratelimit.api_requests")
	s.RateLimit.APIWindow = duration("ratelimit.api_window")

	s.Redis.Addr = v.GetString("redis.addr")
	s.Redis.Password = v.GetString("redis.password")
	s.Redis.DB = v.GetInt("redis.db")
	if s.RateLimit.Store == "redis" && s.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr: required when ratelimit.store is redis"))
	}

	s.Store.Driver = oneOf("store.driver", "sqlite", "postgres", "mysql")
	s.Store.DSN = v.GetString("store.dsn")
	if s.Store.Driver != "sqlite" && s.Store.DSN == "" {
		errs = append(errs, fmt.Errorf("store.dsn: required for driver %s", s.Store.Driver))
	}

	s.Log.Level = oneOf("log.level", "debug", "info", "warn", "error")
	s.Log.Format = oneOf("log.format", "text", "json")

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return &s, nil
}

// Production reports whether the cookie Secure flag and the secret
// requirement apply.
func (s *Settings) Production() bool {
	return s.Env == EnvProduction
}

// Redacted returns a copy with secrets masked, for display.
func (s *Settings) Redacted() Settings {
	cp := *s
	if cp.Auth.JWTSecret != "" {
		cp.Auth.JWTSecret = "********"
	}
	if cp.Redis.Password != "" {
		cp.Redis.Password = "********"
	}
	if cp.Store.DSN != "" && cp.Store.Driver != "sqlite" {
		cp.Store.DSN = "********"
	}
	return cp
}

// Logger builds the process logger. dev forces debug level.
func (s *Settings) Logger(w io.Writer, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch s.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if s.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// splitList also accepts comma-separated entries, as given in
// FOLIO_SERVER_CORS_ORIGINS.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
