package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/CrowderSoup/studyboard/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "studyboard",
	Short: "Study dashboard backend: to-do list and kanban board",
	Long: `studyboard serves the ordered to-do list and kanban board of each signed-in
owner, persists every change to SQLite in the background and pushes updates to
all open tabs over a websocket.

Running without a subcommand starts the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default .env in the working directory)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}
