package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"daq-svr/internal/link"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports the controller may be attached to",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ports, err := link.Ports()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("no serial ports found")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		defer tw.Flush()
		fmt.Fprintln(tw, "PORT\tUSB\tVID:PID\tSERIAL\tPRODUCT")
		for _, p := range ports {
			id := ""
			if p.IsUSB {
				id = p.VID + ":" + p.PID
			}
			fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", p.Name, p.IsUSB, id, p.SerialNumber, p.Product)
		}
		return nil
	},
}
