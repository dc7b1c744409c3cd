// Package cli implements the autopilot command tree.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/ninjaos/autopilot/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"     _         _              _ _       _\n" +
		"    / \\  _   _| |_ ___  _ __ (_) | ___ | |_\n" +
		"   / _ \\| | | | __/ _ \\| '_ \\| | |/ _ \\| __|\n" +
		"  / ___ \\ |_| | || (_) | |_) | | | (_) | |_\n" +
		" /_/   \\_\\__,_|\\__\\___/| .__/|_|_|\\___/ \\__|\n" +
		"                       |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "autopilot",
	Short: "Autopilot - CRM automation daemon",
	Long:  color.CyanString(logo) + "\nEvent-driven lead intake, nurture coaching, and CRM sync for a real estate pipeline.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(eventsCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
