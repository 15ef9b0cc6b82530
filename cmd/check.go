package cmd

import (
	"fmt"

	"github.com/encodeous/rani/core"
	"github.com/encodeous/rani/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validates a node config and prints the initial routing table",
	Run: func(cmd *cobra.Command, args []string) {
		nodeCfg, err := core.ReadNodeConfig(state.NodeConfigPath)
		if err != nil {
			panic(err)
		}
		rs, err := state.NewRouterState(*nodeCfg)
		if err != nil {
			panic(err)
		}

		cfgYaml, err := yaml.Marshal(nodeCfg)
		if err != nil {
			panic(err)
		}
		fmt.Println("Config is valid")
		fmt.Println(string(cfgYaml))
		fmt.Print(rs.Table.String())
	},
	GroupID: "node",
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
