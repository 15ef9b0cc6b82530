package cmd

import (
	"context"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/encodeous/rani/app"
	"github.com/encodeous/rani/core"
	"github.com/encodeous/rani/eventlog"
	"github.com/spf13/cobra"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Run a standalone application for routers to dial",
	Run: func(cmd *cobra.Command, args []string) {
		bind, _ := cmd.Flags().GetString("bind")
		addr, err := netip.ParseAddrPort(bind)
		if err != nil {
			panic(err)
		}
		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}
		logger, err := core.NewLogger("app", level, "")
		if err != nil {
			panic(err)
		}

		srv := &app.Server{Log: logger}
		if path, _ := cmd.Flags().GetString("event-log"); path != "" {
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
			if err != nil {
				panic(err)
			}
			defer f.Close()
			w, err := eventlog.NewWriter(f)
			if err != nil {
				panic(err)
			}
			defer w.Close()
			srv.Events = w
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			logger.Error("application stopped", "err", err)
		}
	},
	GroupID: "node",
}

func init() {
	rootCmd.AddCommand(appCmd)

	appCmd.Flags().StringP("bind", "b", "127.0.0.1:5000", "address to accept router sessions on")
	appCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	appCmd.Flags().String("event-log", "", "append a binary event log session to this file")
}
