package cmd

import (
	"fmt"
	"io"
	"net/http"

	"github.com/encodeous/rani/core"
	"github.com/encodeous/rani/state"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect [metrics bind]",
	Aliases: []string{"i"},
	Short:   "Prints the routing table of a running node",
	Long:    `Fetches the routing table from the node's metrics_bind, read from the node config unless given.`,
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bind, err := inspectBind(args)
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		res, err := http.Get("http://" + bind + "/debug/table")
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		fmt.Print(string(body))
	},
	GroupID: "node",
}

func inspectBind(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	nodeCfg, err := core.ReadNodeConfig(state.NodeConfigPath)
	if err != nil {
		return "", err
	}
	if nodeCfg.MetricsBind == "" {
		return "", fmt.Errorf("%s does not set metrics_bind", state.NodeConfigPath)
	}
	return nodeCfg.MetricsBind, nil
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
