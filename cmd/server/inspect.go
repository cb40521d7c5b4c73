package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"daq-svr/internal/capture"
	"daq-svr/internal/datastore"
	"daq-svr/internal/registry"
)

var inspectRegistry string

var inspectCmd = &cobra.Command{
	Use:   "inspect [run.csv]",
	Short: "Print the sensor registry, or per-channel statistics of a CSV run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectRegistry, "registry", "", "registry YAML (defaults to the configured or built-in registry)")
}

func runInspect(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if inspectRegistry != "" {
		cfg.RegistryFile = inspectRegistry
	}
	reg, err := loadRegistry(cfg.RegistryFile)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if len(args) == 0 {
		printRegistry(tw, reg)
		return nil
	}

	store, err := datastore.New(reg, datastore.DefaultDerived(reg), datastore.WithLogger(newLogger(cfg)))
	if err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	defer f.Close()
	rows, err := capture.ReadCSV(f, store, newLogger(cfg))
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "%d rows\n", rows)
	printStats(tw, store)
	return nil
}

func printRegistry(tw *tabwriter.Writer, reg *registry.Registry) {
	fmt.Fprintf(tw, "registry %s\n", reg.Version())
	fmt.Fprintln(tw, "ID\tNAME\tWIDTH\tENCODING\tKIND\tUNIT")
	for _, id := range reg.IDs() {
		fields, _ := reg.Fields(id)
		for _, f := range fields {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n", id, f.Name, f.Width, f.Encoding, f.Kind, f.UnitShort)
		}
	}
}

func printStats(tw *tabwriter.Writer, store *datastore.Store) {
	fmt.Fprintln(tw, "CHANNEL\tSAMPLES\tMISSING\tMIN\tMAX\tLAST")
	for _, name := range store.Names() {
		vals := store.GetRange(name, -1, store.Len(name))
		if len(vals) == 0 {
			continue
		}
		lo, hi, missing := math.Inf(1), math.Inf(-1), 0
		last := math.NaN()
		for _, v := range vals {
			if datastore.IsMissing(v) {
				missing++
				continue
			}
			lo, hi, last = min(lo, v), max(hi, v), v
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%g\t%g\t%g\n", name, len(vals), missing, lo, hi, last)
	}
}
