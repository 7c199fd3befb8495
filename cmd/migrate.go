package cmd

import (
	"github.com/spf13/cobra"

	"github.com/CrowderSoup/studyboard/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := cfg.NewLogger()
		if err != nil {
			return err
		}

		// Open migrates before returning
		store, err := database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		logger.WithField("db", cfg.DBPath).Info("Database is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
