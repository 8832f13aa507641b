package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groundworklabs/groundwork/internal/wizard"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up a project interactively",
	Long: `Set up a project interactively.

The wizard configures database environments, tests each connection, and
scaffolds the config file, .env files and the migrations directory.`,
	Run: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	if err := wizard.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
