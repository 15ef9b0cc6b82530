package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/encodeous/rani/eventlog"
	"github.com/encodeous/rani/protocol"
	"github.com/gopacket/gopacket"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <event log>...",
	Short: "Decodes binary event logs",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		layers, _ := cmd.Flags().GetBool("layers")
		for _, path := range args {
			f, err := os.Open(path)
			if err != nil {
				panic(err)
			}
			fmt.Printf("======== %s ========\n", path)
			r := eventlog.NewReader(f)
			for {
				rec, err := r.Next()
				if err != nil {
					if !errors.Is(err, io.EOF) {
						fmt.Printf("[!!!] %v\n", err)
					}
					break
				}
				fmt.Println()
				fmt.Print(eventlog.Format(rec))
				if layers && len(rec.Buf) > 0 {
					pkt := gopacket.NewPacket(rec.Buf, protocol.LayerTypeRani, gopacket.Default)
					fmt.Print(pkt.Dump())
				}
			}
			f.Close()
		}
	},
	GroupID: "tools",
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().Bool("layers", false, "also print the decoded packet layers")
}
