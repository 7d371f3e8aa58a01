package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"go-report-access-service/internal/config"
	"go-report-access-service/internal/database"
	"go-report-access-service/internal/repository"
)

// OpenDB defaults to the postgres DSN from the environment; tests swap it
// for an in-memory sqlite handle.
type OpenDB func() (*gorm.DB, error)

func defaultOpenDB() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return database.Open(cfg)
}

func NewRootCommand() *cobra.Command {
	return NewRootCommandWithDB(defaultOpenDB)
}

func NewRootCommandWithDB(openDB OpenDB) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Operational tooling for the report access service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand(openDB))
	root.AddCommand(newCleanupTokensCommand(openDB))
	return root
}

func newMigrateCommand(openDB OpenDB) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate schema: %w", err)
			}
			cmd.Println("schema up to date")
			return nil
		},
	}
}

func newCleanupTokensCommand(openDB OpenDB) *cobra.Command {
	var (
		batchSize int
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "cleanup-tokens",
		Short: "Delete expired or consumed access tokens",
		Long: "Deletes rows whose expiry is older than the retention window. " +
			"The request path never deletes tokens; retention is handled here.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			cutoff := time.Now().UTC().Add(-olderThan)
			deleted, err := repository.NewAccessTokenRepository(db).
				CleanupExpired(context.Background(), cutoff, batchSize)
			if err != nil {
				return fmt.Errorf("cleanup tokens: %w", err)
			}
			cmd.Printf("deleted %d expired tokens\n", deleted)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "maximum rows deleted per batch")
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "retention window after expiry")
	return cmd
}
