package datastore

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"daq-svr/internal/registry"
)

// Infinite is returned by derived channels whenever the transfer function is
// undefined (division by zero, missing parent sample).
const Infinite = 1e9

var (
	ErrCycle         = errors.New("derived channel cycle")
	ErrMissingParent = errors.New("derived channel parent not registered")
)

// Transfer computes a derived value from parent values given in declaration order.
type Transfer func(v []float64) float64

// Derivation declares one derived quantity.
type Derivation struct {
	Name    string
	Unit    string
	Parents []string
	Fn      Transfer
}

func Derive(name, unit string, fn Transfer, parents ...string) Derivation {
	return Derivation{Name: name, Unit: unit, Parents: parents, Fn: fn}
}

// DerivedChannel recomputes its value from its parents on every read.
type DerivedChannel struct {
	def     Derivation
	parents []series
}

func (d *DerivedChannel) name() string { return d.def.Name }

func (d *DerivedChannel) current() (float64, bool) {
	vals := make([]float64, len(d.parents))
	for i, p := range d.parents {
		v, ok := p.current()
		if !ok {
			return 0, false
		}
		vals[i] = v
	}
	return guard(d.def.Fn(vals)), true
}

func (d *DerivedChannel) at(idx int) (float64, bool) {
	if idx < 0 || idx >= d.length() {
		return 0, false
	}
	vals := make([]float64, len(d.parents))
	for i, p := range d.parents {
		v, ok := p.at(idx)
		if !ok {
			return 0, false
		}
		vals[i] = v
	}
	return guard(d.def.Fn(vals)), true
}

func (d *DerivedChannel) length() int {
	n := -1
	for _, p := range d.parents {
		if l := p.length(); n < 0 || l < n {
			n = l
		}
	}
	if n < 0 {
		return 0
	}
	return n
}

func (d *DerivedChannel) connected() bool {
	for _, p := range d.parents {
		if !p.connected() {
			return false
		}
	}
	return true
}

func guard(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Infinite
	}
	return v
}

// Ratio is a / b.
func Ratio(v []float64) float64 {
	if v[1] == 0 {
		return Infinite
	}
	return v[0] / v[1]
}

// Share is a / (a + b).
func Share(v []float64) float64 {
	total := v[0] + v[1]
	if total == 0 {
		return Infinite
	}
	return v[0] / total
}

// Scale multiplies the single parent by k.
func Scale(k float64) Transfer {
	return func(v []float64) float64 { return v[0] * k }
}

const (
	gearboxRatio   = 8.32
	tireDiameterIn = 23.0
	inchesPerMile  = 63360.0
)

// DefaultDerived is the derived set for the built-in registry. Derivations
// whose parents reg does not define are left out.
func DefaultDerived(reg *registry.Registry) []Derivation {
	ppr := 1
	if d, err := reg.ByName(registry.NamePositionEngine); err == nil {
		if p, ok := d.Kind.(registry.Position); ok && p.PulsesPerRev > 0 {
			ppr = p.PulsesPerRev
		}
	}
	mphPerRPM := math.Pi * tireDiameterIn * 60 / inchesPerMile / gearboxRatio

	all := []Derivation{
		Derive("cvt_ratio", "", Ratio, registry.NameSpeedEngine, registry.NameSpeedSecondary),
		Derive("brake_bias_front", "", Share, registry.NameBrakeFront, registry.NameBrakeRear),
		Derive("engine_revolutions", "rev", Scale(1/float64(ppr)), registry.NamePositionEngine),
		Derive("vehicle_speed_mph", "mph", Scale(mphPerRPM), registry.NameSpeedSecondary),
	}
	out := all[:0]
	for _, d := range all {
		if slices.ContainsFunc(d.Parents, func(p string) bool {
			_, err := reg.ByName(p)
			return err != nil
		}) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// link resolves derivations into channels in dependency order, rejecting
// unknown parents and cycles before anything is read.
func link(base map[string]*Channel, defs []Derivation) (map[string]*DerivedChannel, []string, error) {
	byName := make(map[string]Derivation, len(defs))
	for _, d := range defs {
		if _, clash := base[d.Name]; clash {
			return nil, nil, fmt.Errorf("derived %q shadows a registry channel", d.Name)
		}
		if _, dup := byName[d.Name]; dup {
			return nil, nil, fmt.Errorf("derived %q declared twice", d.Name)
		}
		if len(d.Parents) == 0 || d.Fn == nil {
			return nil, nil, fmt.Errorf("derived %q needs parents and a transfer function", d.Name)
		}
		byName[d.Name] = d
	}

	const (
		_ = iota
		visiting
		done
	)
	state := make(map[string]int, len(defs))
	out := make(map[string]*DerivedChannel, len(defs))
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("%w: through %q", ErrCycle, name)
		case done:
			return nil
		}
		state[name] = visiting
		def := byName[name]
		parents := make([]series, 0, len(def.Parents))
		for _, p := range def.Parents {
			if ch, ok := base[p]; ok {
				parents = append(parents, ch)
				continue
			}
			if _, ok := byName[p]; !ok {
				return fmt.Errorf("%w: %q needs %q", ErrMissingParent, name, p)
			}
			if err := visit(p); err != nil {
				return err
			}
			parents = append(parents, out[p])
		}
		out[name] = &DerivedChannel{def: def, parents: parents}
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, d := range defs {
		if err := visit(d.Name); err != nil {
			return nil, nil, err
		}
	}
	return out, order, nil
}
