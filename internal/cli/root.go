// Package cli defines the Cobra command tree for the sellerpilot CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sellerpilot",
	Short: "Memory-augmented analytics agent for seller data",
	Long: `Sellerpilot answers natural-language questions about seller analytics
(sales, traffic, benchmarks) by planning typed tool calls over a local
dataset — and it learns: in the readwrite modes every evaluated run writes
memory that later runs retrieve to plan better.

Run 'sellerpilot run scenario.json' to compare memory-off and memory-on
configurations over a scripted scenario.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		newRunCmd(),
		newAskCmd(),
		newStatusCmd(),
		newPruneCmd(),
		newWatchCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sellerpilot %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
