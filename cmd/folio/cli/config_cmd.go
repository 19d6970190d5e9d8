package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/foliohq/folio/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage Folio configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default folio.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().StringVarP(&path, "output", "o", "folio.yaml", "Path of the file to write")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out, "Set auth.jwt_secret (or FOLIO_AUTH_JWT_SECRET), then run 'folio admin create' and 'folio serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	return cmd
}

func runConfigShow(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		// Strict parse catches misspelled keys viper would silently ignore.
		if _, err := config.LoadYAMLConfig(configFile); err != nil {
			return fmt.Errorf("%s: %w", configFile, err)
		}
		fmt.Fprintf(out, "Config file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "Config file: (none found, using defaults)")
	}
	fmt.Fprintln(out)

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	s := settings.Redacted()

	secret := s.Auth.JWTSecret
	if s.Auth.DevSecret {
		secret = "(development default)"
	}

	rows := [][2]string{
		{"env", s.Env},
		{"data_dir", s.DataDir},
		{"server.host", s.Server.Host},
		{"server.port", fmt.Sprint(s.Server.Port)},
		{"server.max_body_size", fmt.Sprintf("%d bytes", s.Server.MaxBodySize)},
		{"server.shutdown_timeout", s.Server.ShutdownTimeout.String()},
		{"server.cors_origins", strings.Join(s.Server.CORSOrigins, ", ")},
		{"server.trust_proxy", fmt.Sprint(s.Server.TrustProxy)},
		{"auth.jwt_secret", secret},
		{"auth.token_ttl", s.Auth.TokenTTL.String()},
		{"auth.cookie_name", s.Auth.CookieName},
		{"auth.bcrypt_cost", fmt.Sprint(s.Auth.BcryptCost)},
		{"ratelimit.login_max_attempts", fmt.Sprint(s.RateLimit.LoginMaxAttempts)},
		{"ratelimit.login_window", s.RateLimit.LoginWindow.String()},
		{"ratelimit.sweep_interval", s.RateLimit.SweepInterval.String()},
		{"ratelimit.key_by", s.RateLimit.KeyBy},
		{"ratelimit.store", s.RateLimit.Store},
		{"ratelimit.api_requests", fmt.Sprint(s.RateLimit.APIRequests)},
		{"ratelimit.api_window", s.RateLimit.APIWindow.String()},
		{"redis.addr", s.Redis.Addr},
		{"redis.password", s.Redis.Password},
		{"redis.db", fmt.Sprint(s.Redis.DB)},
		{"store.driver", s.Store.Driver},
		{"store.dsn", s.Store.DSN},
		{"log.level", s.Log.Level},
		{"log.format", s.Log.Format},
	}
	for _, r := range rows {
		fmt.Fprintf(out, "  %-30s %s\n", r[0]+":", r[1])
	}
	return nil
}
