package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/licito/backend/model"
	"github.com/licito/backend/service"
	"github.com/licito/backend/store"
)

var (
	serveMigrate bool
	serveSeed    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API on the configured port and shuts down gracefully
on SIGINT or SIGTERM.

With the memory driver the checklist is always seeded, since nothing
persists between runs, and an administrator is created from ADMIN_EMAIL
and ADMIN_PASSWORD when both are set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
	serveCmd.Flags().BoolVar(&serveSeed, "seed-checklist", false, "create missing default checklist items before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, db, closeStore, err := openStore(&cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	if serveMigrate && db != nil {
		if _, err := store.Migrate(ctx, db); err != nil {
			return err
		}
	}

	svc, err := newServices(ctx, cfg, s)
	if err != nil {
		return err
	}
	if serveSeed || cfg.Database.Driver == "memory" {
		if _, err := svc.checklist.SeedDefinitions(ctx, service.DefaultChecklist); err != nil {
			return err
		}
	}
	if cfg.Database.Driver == "memory" {
		if err := bootstrapAdmin(ctx, svc.users); err != nil {
			return err
		}
	}

	limiter, closeLimiter := newLimiter(ctx, cfg)
	defer closeLimiter()

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(cfg, svc, limiter)

	// WriteTimeout is left unset so assistant streams are not cut off
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

func bootstrapAdmin(ctx context.Context, users *service.UserService) error {
	email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		slog.Warn("no administrator configured for the memory store")
		return nil
	}
	u, err := users.Create(ctx, service.UserInput{Name: "Administrador", Email: email, Password: password, Role: model.RoleAdmin})
	if err != nil {
		return fmt.Errorf("failed to create administrator: %w", err)
	}
	slog.Info("administrator created", "user_id", u.ID)
	return nil
}
