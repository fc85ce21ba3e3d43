package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func pruneCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored price bars older than the retention window",
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

			cutoff := time.Now().AddDate(0, 0, -days)
			deleted, err := db.DeletePriceBarsOlderThan(cutoff)
			if err != nil {
				return err
			}
			log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Pruned price bars")
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 365, "Keep bars newer than this many days")
	return cmd
}
