package cli

import (
	"automations/internal/app"
	"automations/internal/store"

	"github.com/spf13/cobra"
)

var seedBadges bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := app.OpenDatabase(cfg, logger)
		if err != nil {
			return err
		}
		st := store.New(db)
		ctx := cmd.Context()

		logger.Info("Starting database migration...")
		if err := st.AutoMigrate(ctx); err != nil {
			return err
		}
		logger.Info("Creating additional indexes...")
		if err := st.EnsureIndexes(ctx); err != nil {
			return err
		}

		if seedBadges {
			created, err := st.SeedBadges(ctx, store.DefaultBadges())
			if err != nil {
				return err
			}
			for _, slug := range created {
				logger.Infof("Created badge %s", slug)
			}
		}
		logger.Info("Migration process completed!")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&seedBadges, "seed", false, "insert the default badges")
	rootCmd.AddCommand(migrateCmd)
}
