package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/foliohq/folio/internal/handler"
	"github.com/foliohq/folio/internal/metrics"
	"github.com/foliohq/folio/internal/openapi"
	"github.com/foliohq/folio/internal/ratelimit"
	"github.com/foliohq/folio/internal/server"
	"github.com/foliohq/folio/internal/service"
)

const banner = `
  __       _ _
 / _| ___ | (_) ___
| |_ / _ \| | |/ _ \
|  _| (_) | | | (_) |
|_|  \___/|_|_|\___/
`

func newServeCmd() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Folio API server",
		Long:  "Start the HTTP server that exposes the public content API and the admin endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, dev)
		},
	}

	cmd.Flags().IntP("port", "p", 5000, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(cmd *cobra.Command, dev bool) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := settings.Logger(os.Stderr, dev)

	out := cmd.OutOrStdout()
	fmt.Fprint(out, banner)
	fmt.Fprintln(out)

	if settings.Auth.DevSecret {
		logger.Warn("auth.jwt_secret not set, using an insecure development secret")
	}

	// 1. Store
	st, err := openStore(settings)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store initialized", "driver", st.Dialect(), "data_dir", settings.DataDir)

	// 2. Services
	authSvc := newAuthService(st, settings, logger)
	contentSvc := service.NewContentService(st, st)

	hasAdmin, err := authSvc.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: folio admin create")
	}

	// 3. Login limiter
	attempts, closeAttempts := newAttemptStore(context.Background(), settings, logger)
	defer closeAttempts()
	limiter := ratelimit.New(attempts, ratelimit.Config{
		MaxAttempts:   settings.RateLimit.LoginMaxAttempts,
		Window:        settings.RateLimit.LoginWindow,
		SweepInterval: settings.RateLimit.SweepInterval,
	}).WithLogger(logger)

	// 4. API document
	baseURL := fmt.Sprintf("http://%s:%d", displayHost(settings.Server.Host), settings.Server.Port)
	doc, err := openapi.JSON(versionString(), baseURL, settings.Auth.CookieName)
	if err != nil {
		return fmt.Errorf("render openapi document: %w", err)
	}

	// 5. HTTP server
	srvCfg := server.Config{
		Host:            settings.Server.Host,
		Port:            settings.Server.Port,
		ShutdownTimeout: settings.Server.ShutdownTimeout,
		CORSOrigins:     settings.Server.CORSOrigins,
		MaxBodySize:     settings.Server.MaxBodySize,
		TrustProxy:      settings.Server.TrustProxy,
		APIRequests:     settings.RateLimit.APIRequests,
		APIWindow:       settings.RateLimit.APIWindow,
		LoginKeyBy:      settings.RateLimit.KeyBy,
		Cookie: handler.CookieOptions{
			Name:   settings.Auth.CookieName,
			Secure: settings.Production(),
		},
	}
	srv := server.New(srvCfg, server.Deps{
		Store:   st,
		Auth:    authSvc,
		Content: contentSvc,
		Limiter: limiter,
		Metrics: metrics.NewWithRuntime(),
		OpenAPI: doc,
	}, logger)

	fmt.Fprintf(out, "→ Folio %s (%s)\n", versionString(), settings.Env)
	fmt.Fprintf(out, "→ Listening on %s\n", baseURL)
	fmt.Fprintf(out, "→ OpenAPI:    %s/openapi.json\n", baseURL)
	fmt.Fprintf(out, "→ Health:     %s/health\n", baseURL)
	fmt.Fprintf(out, "→ Metrics:    %s/metrics\n", baseURL)
	fmt.Fprintln(out)

	return srv.ListenAndServe()
}

func displayHost(host string) string {
	if host == "" || host == "0.0.0.0" {
		return "localhost"
	}
	return host
}
