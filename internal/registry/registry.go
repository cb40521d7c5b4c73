package registry

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownChannel = errors.New("unknown channel id")
	ErrUnknownName    = errors.New("unknown channel name")
)

// Registry is the immutable table of every channel on the wire.
type Registry struct {
	version string
	byID    map[uint16]*Descriptor
	byName  map[string]*Descriptor
	ids     []uint16
}

// Entry pairs an ID with a top-level descriptor when building a registry.
type Entry struct {
	ID         uint16
	Descriptor Descriptor
}

// Composite builds a composite entry from ordered sub-fields.
func Composite(id uint16, name string, fields ...Descriptor) Entry {
	return Entry{ID: id, Descriptor: Descriptor{Name: name, Fields: fields, Kind: Generic{}, Plottable: true, External: true}}
}

// Single builds a single-field entry.
func Single(id uint16, d Descriptor) Entry {
	return Entry{ID: id, Descriptor: d}
}

// New validates entries and builds a registry. Names must be unique across
// entries and sub-fields; IDs must be unique across entries.
func New(version string, entries ...Entry) (*Registry, error) {
	r := &Registry{
		version: version,
		byID:    make(map[uint16]*Descriptor, len(entries)),
		byName:  make(map[string]*Descriptor),
	}

	for _, e := range entries {
		if _, dup := r.byID[e.ID]; dup {
			return nil, fmt.Errorf("registry: duplicate id %d", e.ID)
		}
		d := e.Descriptor
		d.ID = e.ID
		finish(&d)
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}

		fields := make([]Descriptor, len(d.Fields))
		for i, f := range d.Fields {
			f.ID = e.ID
			f.Composite = d.Name
			f.Fields = nil
			finish(&f)
			if err := f.validate(); err != nil {
				return nil, fmt.Errorf("registry: %s: %w", d.Name, err)
			}
			fields[i] = f
		}
		d.Fields = fields

		if err := r.claim(&d); err != nil {
			return nil, err
		}
		for i := range d.Fields {
			if err := r.claim(&d.Fields[i]); err != nil {
				return nil, err
			}
		}
		r.byID[e.ID] = &d
		r.ids = append(r.ids, e.ID)
	}

	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })
	return r, nil
}

func (r *Registry) claim(d *Descriptor) error {
	if _, dup := r.byName[d.Name]; dup {
		return fmt.Errorf("registry: duplicate name %q", d.Name)
	}
	r.byName[d.Name] = d
	return nil
}

func finish(d *Descriptor) {
	if d.Kind == nil {
		d.Kind = Generic{}
	}
	if d.Unit == "" && d.UnitShort == "" {
		d.Unit, d.UnitShort = defaultUnits(d.Kind)
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
}

func (r *Registry) Version() string { return r.version }

// Resolve returns the top-level descriptor registered for id.
func (r *Registry) Resolve(id uint16) (*Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	return d, nil
}

// Fields returns the value-carrying descriptors of id in wire order: the
// descriptor itself, or its sub-fields when composite.
func (r *Registry) Fields(id uint16) ([]Descriptor, error) {
	d, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	if d.IsComposite() {
		return d.Fields, nil
	}
	return []Descriptor{*d}, nil
}

// TotalWireWidth is the byte count id occupies in a data payload.
func (r *Registry) TotalWireWidth(id uint16) (int, error) {
	d, err := r.Resolve(id)
	if err != nil {
		return 0, err
	}
	return d.WireWidth(), nil
}

// ByName finds a descriptor or sub-field by name.
func (r *Registry) ByName(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return d, nil
}

// IDs returns registered top-level ids in ascending order.
func (r *Registry) IDs() []uint16 {
	out := make([]uint16, len(r.ids))
	copy(out, r.ids)
	return out
}

// ValueNames lists every value-carrying name (sub-fields expanded, composite
// containers omitted) in id order.
func (r *Registry) ValueNames() []string {
	var out []string
	for _, id := range r.ids {
		fields, _ := r.Fields(id)
		for _, f := range fields {
			out = append(out, f.Name)
		}
	}
	return out
}
