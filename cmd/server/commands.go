package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storefront/internal/app"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/validation"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return application.Run(ctx)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			return db.EnsureSchema(cmd.Context())
		},
	}
}

func createAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			if err := validateAdmin(name, email, password); err != nil {
				return err
			}

			db, cfg, err := openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.EnsureSchema(cmd.Context()); err != nil {
				return err
			}

			users := service.NewUserService(repository.NewUserRepository(db.Pool), service.NewBcryptHasher(cfg.BcryptCost), nil)
			admin, err := users.EnsureAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "admin %q ready (id %d)\n", admin.Name, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "admin user name")
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (or ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func validateAdmin(name string, email string, password string) error {
	if password == "" {
		return fmt.Errorf("--password or ADMIN_PASSWORD is required")
	}
	if !validation.IsStrongPassword(password) {
		return fmt.Errorf("password must be at least 8 characters with lowercase, uppercase, digit and one of @$!%%?&")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}
	name = strings.TrimSpace(name)
	if n := len(name); n < 3 || n > 30 {
		return fmt.Errorf("name must be 3 to 30 characters")
	}
	if !validation.IsUsername(name) {
		return fmt.Errorf("name may only contain letters, digits, '_' and '-'")
	}
	return nil
}

// openDatabase serves the maintenance commands, which need only the
// database settings.
func openDatabase(ctx context.Context) (*database.DB, *config.Config, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger.New(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")))

	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
