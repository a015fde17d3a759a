// Package main provides doubtctl, the operator CLI for the doubt service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/doubt-service/internal/app"
	"github.com/spec-kit/doubt-service/internal/auth"
	"github.com/spec-kit/doubt-service/internal/config"
	"github.com/spec-kit/doubt-service/internal/domain"
	"github.com/spec-kit/doubt-service/internal/observability"
	"github.com/spec-kit/doubt-service/internal/persistence"
	"github.com/spec-kit/doubt-service/internal/service"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doubtctl",
		Short:         "Operate the doubt service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(migrateCmd(), sweepCmd(), seedCatalogCmd(), assignRoleCmd(), issueTokenCmd())
	return cmd
}

// withRuntime loads config, opens backends and runs fn until it returns or a signal arrives.
func withRuntime(fn func(ctx context.Context, rt *app.Runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the configured database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is required")
			}
			if dir == "" {
				dir = cfg.Postgres.MigrationsDir
			}
			logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			ctx := cmd.Context()
			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			return persistence.RunMigrations(ctx, pg.PoolHandle(), dir, logger)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Migrations directory (defaults to POSTGRES_MIGRATIONS_DIR)")
	return cmd
}

func sweepCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one auto-close and escalation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				now = parsed
			}
			return withRuntime(func(ctx context.Context, rt *app.Runtime) error {
				reports, err := rt.Services.Sweeps.RunAll(ctx, now)
				printJSON(cmd, reports)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluate the sweep as of this RFC3339 time")
	return cmd
}

func seedCatalogCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-catalog",
		Short: "Upsert courses, modules, topics and badges from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			catalog, err := service.ParseCatalog(f)
			if err != nil {
				return err
			}
			return withRuntime(func(ctx context.Context, rt *app.Runtime) error {
				report, err := rt.Services.Catalog.Seed(ctx, catalog)
				if err != nil {
					return err
				}
				printJSON(cmd, report)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yaml", "Catalog YAML file")
	return cmd
}

func assignRoleCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "assign-role",
		Short: "Provision a user with a role",
		RunE: func(cmd *cobra.Command, args []string) error {
			r := domain.Role(role)
			if userID == "" || !r.Valid() {
				return fmt.Errorf("--user and a --role of student, support or admin are required")
			}
			return withRuntime(func(ctx context.Context, rt *app.Runtime) error {
				assignment := &domain.RoleAssignment{UserID: userID, Role: r}
				if err := rt.Store.Roles.Assign(ctx, assignment); err != nil {
					return err
				}
				rt.Logger.Info("role assigned", zap.String("user_id", userID), zap.String("role", role))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&role, "role", "", "Role (student, support, admin)")
	return cmd
}

func issueTokenCmd() *cobra.Command {
	var userID, email string
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign a session token with the configured secret (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.App.Env == "production" {
				return errors.New("issue-token is disabled in production")
			}
			if userID == "" {
				return errors.New("--user is required")
			}
			tm := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)
			token, expires, err := tm.GenerateToken(userID, email)
			if err != nil {
				return err
			}
			printJSON(cmd, map[string]any{"access_token": token, "expires_at": expires})
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
