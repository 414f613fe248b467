package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/livepoll/internal/auth"
	"github.com/MarcoPoloResearchLab/livepoll/internal/config"
	"github.com/MarcoPoloResearchLab/livepoll/internal/database"
	"github.com/MarcoPoloResearchLab/livepoll/internal/logging"
	"github.com/MarcoPoloResearchLab/livepoll/internal/polls"
	"github.com/MarcoPoloResearchLab/livepoll/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "livepoll-api",
		Short: "Live polling backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newHashSecretCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, mysql)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Admin token signing secret (overrides env)")
	cmd.PersistentFlags().Duration("token-ttl", defaults.GetDuration("auth.token_ttl"), "Admin token lifetime; overrides the standard 24h")
	cmd.PersistentFlags().Int("bcrypt-cost", defaults.GetInt("auth.bcrypt_cost"), "bcrypt cost factor for secrets")
	cmd.PersistentFlags().Bool("development", false, "Allow development defaults for secrets")
	cmd.PersistentFlags().Bool("rate-limit", false, "Rate limit unauthenticated endpoints per client")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.token_ttl", "token-ttl")
	bindFlag(cmd, "auth.bcrypt_cost", "bcrypt-cost")
	bindFlag(cmd, "auth.development_mode", "development")
	bindFlag(cmd, "ratelimit.enabled", "rate-limit")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newHashSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret <plain>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasher, err := auth.NewSecretHasher(viper.GetInt("auth.bcrypt_cost"))
			if err != nil {
				return err
			}
			hash, err := hasher.HashSecret(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if appConfig.UsesDevelopmentSigningSecret() {
		logger.Warn("using the development signing secret; set JWT_SECRET outside development")
	}
	if appConfig.OverridesTokenTTL() {
		logger.Warn("admin token lifetime overridden", zap.Duration("token_ttl", appConfig.TokenTTL))
	}

	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	hasher, err := auth.NewSecretHasher(appConfig.BcryptCost)
	if err != nil {
		return err
	}

	gateway, err := auth.NewAdminGateway(auth.AdminGatewayConfig{
		Tokens:                 tokenIssuer,
		Hasher:                 hasher,
		AdminSecretHash:        appConfig.AdminPasswordHash,
		AllowDevelopmentSecret: appConfig.DevelopmentMode,
	})
	if err != nil {
		return err
	}
	if gateway.UsesDevelopmentSecret() {
		logger.Warn("admin login accepts the development password; set ADMIN_PASSWORD_HASH outside development")
	}

	pollService, err := polls.NewService(polls.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: polls.NewUUIDProvider(),
		Secrets:    gateway,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Admin: gateway,
		Polls: pollService,
		RateLimit: server.RateLimitConfig{
			Enabled:           appConfig.RateLimit.Enabled,
			RequestsPerSecond: appConfig.RateLimit.RequestsPerSecond,
			Burst:             appConfig.RateLimit.Burst,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
