package main

import (
	"context"

	"github.com/paperlane/paperlane/internal/config"
	"github.com/paperlane/paperlane/internal/store"
	"github.com/paperlane/paperlane/pkg/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db and install the package catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		defer setupLogging(cfg)()
		defer zap.S().Info("Db migrated")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		return migrate(cmd.Context(), cfg, db, s)
	},
}

// migrate runs the goose migrations on postgres and gorm auto-migration on sqlite, then seeds the packages.
func migrate(ctx context.Context, cfg *config.Config, db *gorm.DB, s store.Store) error {
	if cfg.Database.Type == "pgsql" {
		if err := migrations.MigrateStore(ctx, db, cfg); err != nil {
			return err
		}
	} else if err := s.InitialMigration(ctx); err != nil {
		return err
	}

	return s.Seed(ctx)
}
