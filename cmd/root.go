package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "groundwork",
	Short: "Groundwork runs journal-tracked SQL migrations and serves the HTTP scaffold.",
	Long: `Groundwork runs journal-tracked SQL migrations and serves the HTTP scaffold.

Migrations are plain .sql files in the migrations directory, applied in
lexicographic order and recorded in meta/_journal.json. Each migration may
carry a paired <tag>.down.sql file used for rollback.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
