package dispatcher

import (
	"fmt"
	"strconv"
	"time"

	"daq-svr/internal/registry"
)

// ledDebounce keeps a stuck button from flooding the controller.
const ledDebounce = 250 * time.Millisecond

func (d *Dispatcher) registerBuiltins() {
	d.RegisterCommand(Command{
		Name:  "output.add",
		Usage: "<channel>",
		Args:  1,
		Run: func(args []string) error {
			id, err := d.sensorID(args[0])
			if err != nil {
				return err
			}
			return d.engine.AddOutput(id)
		},
	})
	d.RegisterCommand(Command{
		Name:  "output.remove",
		Usage: "<channel>",
		Args:  1,
		Run: func(args []string) error {
			id, err := d.sensorID(args[0])
			if err != nil {
				return err
			}
			d.engine.RemoveOutput(id)
			return nil
		},
	})
	d.RegisterCommand(Command{
		Name:  "set",
		Usage: "<channel> <value>",
		Args:  2,
		Run: func(args []string) error {
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("value %q: %w", args[1], err)
			}
			return d.store.SetCurrent(args[0], v)
		},
	})
	d.RegisterCommand(Command{
		Name:             "led",
		Usage:            "<on|off>",
		Args:             1,
		MinRetryInterval: ledDebounce,
		Run: func(args []string) error {
			on, err := parseSwitch(args[0])
			if err != nil {
				return err
			}
			v := 0.0
			if on {
				v = 1
			}
			return d.store.SetCurrent(registry.NameTestLED, v)
		},
	})
}

// sensorID maps a channel or composite name to its wire id.
func (d *Dispatcher) sensorID(name string) (uint16, error) {
	desc, err := d.reg.ByName(name)
	if err != nil {
		return 0, err
	}
	return desc.ID, nil
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
