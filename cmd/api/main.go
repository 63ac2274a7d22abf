package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pet-clinic-backend/internal/adapters/auth/jwtauth"
	"pet-clinic-backend/internal/adapters/auth/remote"
	pg "pet-clinic-backend/internal/adapters/storage/postgres"
	"pet-clinic-backend/internal/platform/config"
	"pet-clinic-backend/internal/platform/logger"
	"pet-clinic-backend/internal/ports/auth"
	"pet-clinic-backend/internal/router"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    cfg.App.Name,
	})
	if z, ok := log.(*logger.ZapLogger); ok {
		defer func() { _ = z.Sync() }()
	}

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	var db *sql.DB
	if cfg.DB.DSN != "" {
		db, err = pg.Open(pg.Options{
			DSN:             cfg.DB.DSN,
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer db.Close()
	}

	h, err := router.NewRouter(router.Options{
		AuthVerifier:        verifier,
		RejectInvalidTokens: cfg.Auth.RejectInvalidTokens,
		DevHeaders:          cfg.Auth.Mode == config.AuthModeDev,
		DB:                  db,
		Log:                 log,
		DefaultPageSize:     cfg.API.DefaultPageSize,
		MaxPageSize:         cfg.API.MaxPageSize,
		RateLimit:           cfg.HTTP.RateLimit,
		RateWindow:          cfg.HTTP.RateWindow,
		CORSOrigins:         cfg.HTTP.CORSOrigins,
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server_starting", map[string]any{"addr": srv.Addr, "auth_mode": cfg.Auth.Mode, "postgres": db != nil})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server_stopping", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newVerifier: nil en modo dev; el router exige entonces DevHeaders.
func newVerifier(cfg config.AuthConfig) (auth.AuthVerifier, error) {
	switch cfg.Mode {
	case config.AuthModeJWT:
		return jwtauth.NewService(jwtauth.Config{
			Secret: cfg.JWTSecret,
			Issuer: cfg.Issuer,
			TTL:    cfg.TokenTTL,
			Leeway: cfg.Leeway,
		})
	case config.AuthModeRemote:
		return remote.NewVerifier(remote.Config{
			BaseURL: cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
			Timeout: cfg.Remote.Timeout,
		})
	default:
		return nil, nil
	}
}
