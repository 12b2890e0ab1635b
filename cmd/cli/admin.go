package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	postgresRepo "github.com/iho/eodledger/internal/adapter/repository/postgres"
	"github.com/iho/eodledger/internal/domain"
	"github.com/iho/eodledger/internal/infrastructure/auth"
	"github.com/iho/eodledger/internal/infrastructure/config"
	"github.com/iho/eodledger/internal/infrastructure/logger"
	"github.com/iho/eodledger/internal/infrastructure/postgres"
)

func cliLogger() zerolog.Logger {
	return logger.New(logger.Config{Level: "info", Format: "console", Output: os.Stderr})
}

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}

	migrator := func() (*postgres.Migrator, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		return postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, cliLogger()), nil
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migrator()
				if err != nil {
					return err
				}
				return m.Up()
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migrator()
				if err != nil {
					return err
				}
				return m.Down()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := migrator()
				if err != nil {
					return err
				}
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			},
		},
	)
	return migrateCmd
}

func newInitDateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-date <YYYY-MM-DD>",
		Short: "Set the business date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := domain.ParseDay(args[0])
			if err != nil {
				return fmt.Errorf("invalid date %q: %w", args[0], err)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			pool, err := postgres.NewPool(cmd.Context(), cfg.DatabaseURL, 1, 0)
			if err != nil {
				return fmt.Errorf("connect to postgres: %w", err)
			}
			defer pool.Close()

			if err := postgresRepo.NewBusinessClock(pool).Initialize(cmd.Context(), date); err != nil {
				return fmt.Errorf("initialize business date: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Business date set to %s\n", domain.FormatDay(date))
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		role   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			op := domain.Operator{ID: userID, Role: domain.Role(role)}
			if op.ID == "" || !op.Role.Valid() {
				return fmt.Errorf("a user id and one of viewer, operator, admin are required")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration).Generate(op)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"token":      token,
				"user_id":    op.ID,
				"role":       op.Role,
				"expires_in": cfg.JWTExpiration.String(),
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Operator id recorded on job executions")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleOperator), "Operator role")
	return cmd
}
