package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/trogers1052/brot-trading-bot/internal/config"
	"github.com/trogers1052/brot-trading-bot/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(cfg.Database.MigrationsPath); err != nil {
				return err
			}
			log.Info().Str("path", cfg.Database.MigrationsPath).Msg("Migrations applied")
			return nil
		},
	}
}

func openDB(cfg *config.Config) (*database.DB, error) {
	return database.New(cfg.Database.ConnectionString())
}
