package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sumire/providerlab/internal/config"
	"github.com/sumire/providerlab/internal/handler"
	"github.com/sumire/providerlab/internal/logger"
	"github.com/sumire/providerlab/internal/oauth"
	"github.com/sumire/providerlab/internal/repository"
	"github.com/sumire/providerlab/internal/service"
)

func newServeCommand(opts *options) *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.serve(cmd.Context(), autoMigrate)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Run pending migrations before serving")

	return cmd
}

func (o *options) serve(ctx context.Context, autoMigrate bool) error {
	e, err := o.initEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	cfg := e.cfg

	if autoMigrate {
		m, err := repository.NewMigrator(e.db, logger.WithComponent("migrate"))
		if err != nil {
			return err
		}
		if err := m.Up(ctx); err != nil {
			return err
		}
	}

	providerRepo := repository.NewProviderRepository(e.db)
	userRepo := repository.NewUserRepository(e.db)
	errorLogRepo := repository.NewErrorLogRepository(e.db)

	statuses := service.NewStatusService(providerRepo, logger.WithComponent("status"))
	errorLogger := service.NewErrorLogger(errorLogRepo, logger.WithComponent("errorlog"), cfg.Auth.ErrorLogTimeout)
	dispatcher := service.NewDispatcher(statuses, errorLogger, logger.WithComponent("dispatcher"))

	if cfg.Server.SeedOnStart {
		n, err := statuses.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed providers: %w", err)
		}
		e.log.Info("providers seeded", "created", n)
	}

	client, err := oauth.NewClient(oauthConfigs(cfg), dispatcher, &http.Client{Timeout: 15 * time.Second}, logger.WithComponent("oauth"))
	if err != nil {
		return fmt.Errorf("configure oauth providers: %w", err)
	}

	users := service.NewUserService(userRepo, client, logger.WithComponent("users"))
	sessions := service.NewSessionService(service.SessionConfig{
		JWTSecret:  cfg.Auth.JWTSecret,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})

	router := handler.NewRouter(handler.RouterConfig{
		Auth:         handler.NewAuthHandler(client, users, sessions, isHTTPS(cfg.Server.BaseURL)),
		Providers:    handler.NewProviderHandler(statuses),
		ErrorLogs:    handler.NewErrorLogHandler(errorLogger),
		Tokens:       sessions,
		Logger:       logger.WithComponent("http"),
		AllowOrigins: []string{cfg.Server.FrontendURL},
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info("server starting", "port", cfg.Server.Port, "providers", len(cfg.Providers))
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		e.log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := errorLogger.Wait(shutdownCtx); err != nil {
		e.log.Warn("pending error logs dropped", "error", err)
	}

	e.log.Info("server stopped gracefully")
	return nil
}

func oauthConfigs(cfg config.Config) map[string]oauth.ProviderConfig {
	out := make(map[string]oauth.ProviderConfig, len(cfg.Providers))
	for name, p := range cfg.Providers {
		out[name] = oauth.ProviderConfig{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			AuthURL:      p.AuthURL,
			TokenURL:     p.TokenURL,
			ProfileURL:   p.ProfileURL,
			RevokeURL:    p.RevokeURL,
			RedirectURL:  cfg.CallbackURL(name),
			Scopes:       p.Scopes,
			AuthStyle:    p.AuthStyle,
			AuthParams:   p.AuthParams,
			PKCE:         p.PKCE,
			SubjectField: p.SubjectField,
		}
	}
	return out
}

func isHTTPS(rawURL string) bool {
	return strings.HasPrefix(rawURL, "https://")
}
