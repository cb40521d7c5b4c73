package registry

import "fmt"

// Encoding selects how a field's little-endian bytes are reinterpreted.
type Encoding int

const (
	Integer Encoding = iota // unsigned little-endian
	Float                   // IEEE-754, width 4 or 8
)

func (e Encoding) String() string {
	switch e {
	case Integer:
		return "int"
	case Float:
		return "float"
	default:
		return "unknown"
	}
}

// Kind is the closed set of channel kinds. Each variant carries only the
// fields that make sense for it.
type Kind interface {
	fmt.Stringer
	sealed()
}

type Generic struct{}

// Time marks locally generated or controller clock channels.
type Time struct{}

// Speed channels report a pulse rate; PulsesPerRev converts it to rotations.
type Speed struct{ PulsesPerRev int }

// Position channels report an accumulated pulse count.
type Position struct{ PulsesPerRev int }

type Flag struct{}

type Pressure struct{ MaxPSI float64 }

func (Generic) sealed()  {}
func (Time) sealed()     {}
func (Speed) sealed()    {}
func (Position) sealed() {}
func (Flag) sealed()     {}
func (Pressure) sealed() {}

func (Generic) String() string  { return "generic" }
func (Time) String() string     { return "time" }
func (Speed) String() string    { return "speed" }
func (Position) String() string { return "position" }
func (Flag) String() string     { return "flag" }
func (Pressure) String() string { return "pressure" }

// defaultUnits returns the (unit, short unit) a kind implies when the
// registry entry does not name one.
func defaultUnits(k Kind) (string, string) {
	switch k.(type) {
	case Time:
		return "seconds", "s"
	case Speed:
		return "revolutions per minute", "rpm"
	case Position:
		return "ticks", "ticks"
	case Flag:
		return "state", ""
	case Pressure:
		return "pounds per square inch", "psi"
	case Generic:
		return "", ""
	default:
		return "", ""
	}
}

// Descriptor is one registry entry. A composite entry has Fields and no
// payload of its own; each field is itself a Descriptor sharing the parent ID.
type Descriptor struct {
	ID          uint16
	Name        string
	Width       int
	Encoding    Encoding
	Kind        Kind
	DisplayName string
	Unit        string
	UnitShort   string
	Plottable   bool
	External    bool

	// Composite is the parent entry's name when this descriptor is a sub-field.
	Composite string
	Fields    []Descriptor
}

func (d *Descriptor) IsComposite() bool { return len(d.Fields) > 0 }

// WireWidth is the number of bytes the entry occupies on the wire.
func (d *Descriptor) WireWidth() int {
	if !d.IsComposite() {
		return d.Width
	}
	total := 0
	for i := range d.Fields {
		total += d.Fields[i].Width
	}
	return total
}

func (d *Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("id %d: empty name", d.ID)
	}
	if d.IsComposite() {
		return nil
	}
	if d.Width < 1 || d.Width > 8 {
		return fmt.Errorf("%s: width %d out of range 1..8", d.Name, d.Width)
	}
	if d.Encoding == Float && d.Width != 4 && d.Width != 8 {
		return fmt.Errorf("%s: float fields must be 4 or 8 bytes, got %d", d.Name, d.Width)
	}
	return nil
}

// Field builds a plottable, external integer descriptor with kind defaults.
// Options tweak the rest.
func Field(name string, width int, kind Kind, opts ...Option) Descriptor {
	d := Descriptor{
		Name:      name,
		Width:     width,
		Kind:      kind,
		Plottable: true,
		External:  true,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

type Option func(*Descriptor)

func AsFloat() Option { return func(d *Descriptor) { d.Encoding = Float } }

func WithUnit(unit, short string) Option {
	return func(d *Descriptor) { d.Unit, d.UnitShort = unit, short }
}

func WithDisplayName(name string) Option {
	return func(d *Descriptor) { d.DisplayName = name }
}

func NotPlottable() Option { return func(d *Descriptor) { d.Plottable = false } }

func InternalOnly() Option { return func(d *Descriptor) { d.External = false } }
