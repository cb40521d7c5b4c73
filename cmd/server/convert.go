package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"daq-svr/internal/acquisition"
	"daq-svr/internal/capture"
	"daq-svr/internal/codec"
	"daq-svr/internal/datastore"
	"daq-svr/internal/link"
	"daq-svr/internal/source"
)

var (
	convertRegistry string
	convertChannels string
)

var convertCmd = &cobra.Command{
	Use:   "convert <capture.bin> <out.csv>",
	Short: "Decode a recorded binary capture into a CSV file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertRegistry, "registry", "", "registry YAML (defaults to the configured or built-in registry)")
	convertCmd.Flags().StringVar(&convertChannels, "channels", "", "comma separated channel names to export (default all)")
}

func runConvert(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if convertRegistry != "" {
		cfg.RegistryFile = convertRegistry
	}
	reg, err := loadRegistry(cfg.RegistryFile)
	if err != nil {
		return err
	}
	store, err := datastore.New(reg, datastore.DefaultDerived(reg), datastore.WithLogger(logger))
	if err != nil {
		return err
	}
	engine := codec.NewEngine(reg, store, logger, codec.WithInternal(internalIDs(reg)...))

	in := args[0]
	replay, err := source.OpenReplay(in)
	if err != nil {
		return err
	}
	links := link.NewManager(link.Once(func() (source.Source, error) { return replay, nil }), 0, logger)
	defer links.Close()

	loop := acquisition.NewLoop(engine, store, links, logger)
	loop.SetEnabled(true)
	loop.Run()

	var names []string
	if convertChannels != "" {
		names = strings.Split(convertChannels, ",")
	}
	out, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if err := capture.WriteCSV(out, store, names); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	logger.Info("convert: done", "in", in, "out", args[1], "run_id", loop.RunID())
	return nil
}
