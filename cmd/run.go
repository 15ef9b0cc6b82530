package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/encodeous/rani/core"
	"github.com/encodeous/rani/state"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a router node",
	Long:  `This will run the router described by the node config until it receives SIGINT or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		nodeCfg, err := core.ReadNodeConfig(state.NodeConfigPath)
		if err != nil {
			panic(err)
		}
		if logPath, _ := cmd.Flags().GetString("log"); logPath != "" {
			nodeCfg.LogPath = logPath
		}
		if eventLog, _ := cmd.Flags().GetString("event-log"); eventLog != "" {
			nodeCfg.EventLog = eventLog
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		logger, err := core.NewLogger(nodeCfg.Id, level, nodeCfg.LogPath)
		if err != nil {
			panic(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		err = core.Start(ctx, *nodeCfg, logger, nil)
		if err != nil {
			logger.Error("router stopped", "err", err)
			os.Exit(1)
		}
	},
	GroupID: "node",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().String("log", "", "also write logs to this file")
	runCmd.Flags().String("event-log", "", "append a binary event log session to this file")
}
