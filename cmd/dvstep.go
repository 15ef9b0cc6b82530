package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/rani/core"
	"github.com/encodeous/rani/state"
	"github.com/spf13/cobra"
)

var dvstepCmd = &cobra.Command{
	Use:   "dvstep",
	Short: "Simulates synchronous distance-vector rounds over a topology",
	Run: func(cmd *cobra.Command, args []string) {
		topoPath, _ := cmd.Flags().GetString("topology")
		rounds, _ := cmd.Flags().GetInt("rounds")
		topo, err := core.ReadTopology(topoPath)
		if err != nil {
			panic(err)
		}

		var only *state.Subnet
		if cmd.Flags().Changed("node") {
			n, _ := cmd.Flags().GetUint8("node")
			s := state.Subnet(n)
			only = &s
		}
		sim := core.NewDvSim(topo)
		ran, err := sim.Run(rounds, func(d *core.DvSim) error {
			return d.Render(os.Stdout, only)
		})
		if err != nil {
			panic(err)
		}
		fmt.Printf("stopped after %d rounds\n", ran)
		if err := sim.Render(os.Stdout, only); err != nil {
			panic(err)
		}
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(dvstepCmd)

	dvstepCmd.Flags().StringP("topology", "t", "topology.yaml", "weighted subnet graph")
	dvstepCmd.Flags().IntP("rounds", "r", 0, "maximum rounds, 0 runs until no table changes")
	dvstepCmd.Flags().Uint8("node", 0, "only print this subnet's table")
}
