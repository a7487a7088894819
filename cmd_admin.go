package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/licito/backend/config"
	"github.com/licito/backend/model"
	"github.com/licito/backend/service"
	"github.com/licito/backend/store"
)

// openPostgresStore opens the configured database for the maintenance
// commands, which make no sense against the memory driver.
func openPostgresStore(cfg *config.DatabaseConfig) (store.Store, func(), error) {
	if cfg.Driver != "postgres" {
		return nil, nil, fmt.Errorf("this command needs the postgres driver, configured driver is %q", cfg.Driver)
	}
	s, _, closeStore, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return s, closeStore, nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Database.Driver != "postgres" {
			return fmt.Errorf("this command needs the postgres driver, configured driver is %q", cfg.Database.Driver)
		}
		db, err := store.OpenPostgres(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := store.Migrate(cmd.Context(), db)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
		}
		return nil
	},
}

var seedChecklistCmd = &cobra.Command{
	Use:   "seed-checklist",
	Short: "Create the default checklist items that are missing",
	Long: `Registers the standard administrative and technical checklist items.
Items already registered with the same text are skipped, so the command can
run on every deploy. Existing contracts receive the new items the next time
their checklist is opened.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closeStore, err := openPostgresStore(&cfg.Database)
		if err != nil {
			return err
		}
		defer closeStore()

		created, err := service.NewChecklistService(s).SeedDefinitions(cmd.Context(), service.DefaultChecklist)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d checklist items\n", created)
		return nil
	},
}

var (
	adminName     string
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Example: `  licito create-admin --email admin@orgao.gov.br --password 's3nh@forte'
  ADMIN_PASSWORD=... licito create-admin --email admin@orgao.gov.br`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminPassword == "" {
			adminPassword = os.Getenv("ADMIN_PASSWORD")
		}

		s, closeStore, err := openPostgresStore(&cfg.Database)
		if err != nil {
			return err
		}
		defer closeStore()

		u, err := service.NewUserService(s).Create(cmd.Context(), service.UserInput{
			Name:     adminName,
			Email:    adminEmail,
			Password: adminPassword,
			Role:     model.RoleAdmin,
		})
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			return errors.New(verr.Message)
		case errors.Is(err, store.ErrDuplicate):
			return fmt.Errorf("a user with email %s already exists", adminEmail)
		case err != nil:
			return err
		}

		slog.Info("administrator created", "user_id", u.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "Created administrator %s (%s)\n", u.Email, u.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrador", "display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "login email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "initial password (default $ADMIN_PASSWORD)")
	_ = createAdminCmd.MarkFlagRequired("email")
}
