// Package dispatcher applies operator commands to the running session: it
// changes which channels are sent to the controller and what values they carry.
package dispatcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"daq-svr/internal/registry"
)

var (
	ErrUnknownCommand = errors.New("dispatcher: unknown command")
	ErrUsage          = errors.New("dispatcher: wrong number of arguments")
	ErrTooSoon        = errors.New("dispatcher: command repeated too soon")
)

// Engine is the part of the protocol engine commands drive.
type Engine interface {
	AddOutput(id uint16) error
	RemoveOutput(id uint16)
}

// Store is the part of the data store commands write to.
type Store interface {
	SetCurrent(name string, v float64) error
}

type Command struct {
	Name             string
	Usage            string
	Args             int
	MinRetryInterval time.Duration
	Run              func(args []string) error
}

type Dispatcher struct {
	reg    *registry.Registry
	engine Engine
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	cmds map[string]Command
	last map[string]time.Time
}

// New returns a dispatcher with the built-in commands registered.
func New(reg *registry.Registry, engine Engine, store Store, lg *slog.Logger) *Dispatcher {
	if lg == nil {
		lg = slog.Default()
	}
	d := &Dispatcher{
		reg:    reg,
		engine: engine,
		store:  store,
		logger: lg.With("component", "dispatcher"),
		now:    time.Now,
		cmds:   make(map[string]Command),
		last:   make(map[string]time.Time),
	}
	d.registerBuiltins()
	return d
}

func (d *Dispatcher) RegisterCommand(c Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmds[c.Name] = c
}

// Commands lists registered commands by name.
func (d *Dispatcher) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Command, 0, len(d.cmds))
	for _, c := range d.cmds {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch runs the named command.
func (d *Dispatcher) Dispatch(name string, args ...string) error {
	d.mu.Lock()
	cmd, ok := d.cmds[name]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	if len(args) != cmd.Args {
		d.mu.Unlock()
		return fmt.Errorf("%w: usage %s %s", ErrUsage, cmd.Name, cmd.Usage)
	}
	now := d.now()
	if last, seen := d.last[name]; seen && now.Sub(last) < cmd.MinRetryInterval {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTooSoon, name)
	}
	d.last[name] = now
	d.mu.Unlock()

	if err := cmd.Run(args); err != nil {
		d.logger.Warn("dispatcher: command failed", "cmd", name, "args", args, "err", err)
		return fmt.Errorf("dispatcher: %s: %w", name, err)
	}
	d.logger.Info("dispatcher: command applied", "cmd", name, "args", args)
	return nil
}
