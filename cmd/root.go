package cmd

import (
	"os"

	"github.com/encodeous/rani/state"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rani",
	Short: "Distance-vector router node and tools",
	Long: `rani runs a small distance-vector router that forwards 8-bit addressed packets
between point-to-point links and a local application, and ships tools to inspect its event logs.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "node",
		Title: "Router Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "tools",
		Title: "Tools",
	})
	rootCmd.PersistentFlags().StringVarP(&state.NodeConfigPath, "node-config", "n", state.NodeConfigPath, "node config")
}
