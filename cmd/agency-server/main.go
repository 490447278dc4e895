package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carelink/agency/internal/config"
	"github.com/carelink/agency/internal/domain/document"
	"github.com/carelink/agency/internal/platform/db"
	"github.com/carelink/agency/internal/platform/logging"
	"github.com/carelink/agency/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "agency-server",
		Short: "Agency chart review API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(orphansCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// loadConfig loads and validates configuration and builds the process logger.
func loadConfig() (*config.Config, zerolog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	logger, closer := logging.New(logging.Options{
		Level: cfg.LogLevel,
		Dev:   cfg.IsDev(),
		File:  cfg.LogFile,
	})
	return cfg, logger, func() { _ = closer.Close() }, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseAdminURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(db.NewAdminDB(pool), migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseAdminURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(db.NewAdminDB(pool), migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func orphansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Manage stored objects left behind by document deletes",
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Retry removal of recorded storage orphans",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			cfg, logger, closeLog, err := loadConfig()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			store, err := newStore(ctx, cfg)
			if err != nil {
				return err
			}
			userDB := db.NewUserDB(pool)
			svc := document.NewService(document.Deps{
				Repo:    document.NewRepoPG(userDB),
				Orphans: document.NewOrphanRepoPG(userDB),
				Tx:      userDB,
				Store:   store,
				Logger:  logger,
			})

			res, err := svc.SweepOrphans(ctx, limit)
			if err != nil {
				return fmt.Errorf("orphan sweep failed: %w", err)
			}
			fmt.Printf("Attempted %d, removed %d, failed %d.\n", res.Attempted, res.Removed, res.Failed)
			return nil
		},
	}
	sweepCmd.Flags().Int("limit", 500, "Maximum number of orphans to process")
	sweepCmd.Flags().Duration("timeout", 5*time.Minute, "Overall time limit for the sweep")
	cmd.AddCommand(sweepCmd)

	return cmd
}
