package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/foliohq/folio/internal/config"
	"github.com/foliohq/folio/internal/ratelimit"
	"github.com/foliohq/folio/internal/service"
	"github.com/foliohq/folio/internal/store"
)

// loadSettings validates the effective configuration.
func loadSettings() (*config.Settings, error) {
	return config.Load(viper.GetViper())
}

// openStore opens the admin and content store described by s.
func openStore(s *config.Settings) (*store.Store, error) {
	st, err := store.New(store.Options{
		Driver:  s.Store.Driver,
		DSN:     s.Store.DSN,
		DataDir: s.DataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newAuthService(st *store.Store, s *config.Settings, logger *slog.Logger) *service.AuthService {
	return service.NewAuthService(st,
		service.NewHasher(s.Auth.BcryptCost),
		service.NewTokenManager(s.Auth.JWTSecret, s.Auth.TokenTTL),
		logger,
	)
}

// newAttemptStore returns the configured login attempt store. An unreachable
// Redis falls back to the in-memory store so the server still starts. The
// returned close func is always non-nil.
func newAttemptStore(ctx context.Context, s *config.Settings, logger *slog.Logger) (ratelimit.AttemptStore, func()) {
	if s.RateLimit.Store != "redis" {
		return ratelimit.NewMemoryStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     s.Redis.Addr,
		Password: s.Redis.Password,
		DB:       s.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory login limiter", "addr", s.Redis.Addr, "error", err)
		client.Close()
		return ratelimit.NewMemoryStore(), func() {}
	}

	logger.Info("login limiter using redis", "addr", s.Redis.Addr)
	return ratelimit.NewRedisStore(client, s.RateLimit.LoginWindow), func() { client.Close() }
}

// prompter reads answers from the command's input. Secrets are read without
// echo when the input is a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int // -1 when input is not a terminal
}

func newPrompter(cmd *cobra.Command) *prompter {
	in := cmd.InOrStdin()
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &prompter{in: bufio.NewReader(in), out: cmd.OutOrStdout(), fd: fd}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimRight(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) secret(label string) (string, error) {
	if p.fd < 0 {
		return p.line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// newPassword asks for a password twice.
func (p *prompter) newPassword(label string) (string, error) {
	pw, err := p.secret(label + ": ")
	if err != nil {
		return "", err
	}
	confirm, err := p.secret("Confirm password: ")
	if err != nil {
		return "", err
	}
	if pw != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pw, nil
}

// confirm asks a yes/no question. Only "yes" or "y" count as consent.
func (p *prompter) confirm(question string) (bool, error) {
	answer, err := p.line(question + " (yes/no): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "yes", "y":
		return true, nil
	}
	return false, nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
