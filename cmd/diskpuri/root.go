package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/averyk/diskpuri/internal/tui"
)

var version = "dev"

// rootCmd launches the interactive schema builder when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:           "diskpuri",
	Short:         "Overwrite block devices with configurable content passes",
	Long:          "diskpuri builds and runs disk overwrite schemas, feeding content\nthrough an external block writer one pass at a time.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		app, err := tui.NewApp(cwd)
		if err != nil {
			return err
		}
		p := tea.NewProgram(app, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run interface: %w", err)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the diskpuri version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("diskpuri %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// requireRoot refuses to run without an effective uid of 0. Writing raw
// devices needs it, and failing early beats a writer permission error
// halfway into a schema.
func requireRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("must run as root to write block devices")
	}
	return nil
}
