package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileRegistry struct {
	Version string      `yaml:"version"`
	Sensors []fileEntry `yaml:"sensors"`
}

type fileEntry struct {
	ID     uint16      `yaml:"id"`
	Fields []fileField `yaml:"fields"`
	fileField `yaml:",inline"`
}

type fileField struct {
	Name         string  `yaml:"name"`
	Width        int     `yaml:"width"`
	Float        bool    `yaml:"float"`
	Kind         string  `yaml:"kind"`
	PulsesPerRev int     `yaml:"pulses_per_rev"`
	MaxPSI       float64 `yaml:"max_psi"`
	DisplayName  string  `yaml:"display_name"`
	Unit         string  `yaml:"unit"`
	UnitShort    string  `yaml:"unit_short"`
	Plottable    *bool   `yaml:"plottable"`
	External     *bool   `yaml:"external"`
}

// Load reads a YAML registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML. Kind strings are resolved here, once.
func Parse(data []byte) (*Registry, error) {
	var f fileRegistry
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("registry: parse: %w", err)
	}
	if f.Version == "" {
		return nil, fmt.Errorf("registry: missing version")
	}

	entries := make([]Entry, 0, len(f.Sensors))
	for _, s := range f.Sensors {
		if len(s.Fields) == 0 {
			d, err := s.fileField.descriptor()
			if err != nil {
				return nil, err
			}
			entries = append(entries, Single(s.ID, d))
			continue
		}
		fields := make([]Descriptor, 0, len(s.Fields))
		for _, ff := range s.Fields {
			d, err := ff.descriptor()
			if err != nil {
				return nil, fmt.Errorf("registry: %s: %w", s.Name, err)
			}
			fields = append(fields, d)
		}
		entries = append(entries, Composite(s.ID, s.Name, fields...))
	}
	return New(f.Version, entries...)
}

func (ff fileField) descriptor() (Descriptor, error) {
	kind, err := ff.kind()
	if err != nil {
		return Descriptor{}, err
	}
	d := Field(ff.Name, ff.Width, kind)
	if ff.Float {
		d.Encoding = Float
	}
	d.DisplayName = ff.DisplayName
	d.Unit, d.UnitShort = ff.Unit, ff.UnitShort
	if ff.Plottable != nil {
		d.Plottable = *ff.Plottable
	}
	if ff.External != nil {
		d.External = *ff.External
	}
	return d, nil
}

func (ff fileField) kind() (Kind, error) {
	switch ff.Kind {
	case "", "generic":
		return Generic{}, nil
	case "time":
		return Time{}, nil
	case "flag":
		return Flag{}, nil
	case "speed", "position":
		if ff.PulsesPerRev <= 0 {
			return nil, fmt.Errorf("registry: %s: %s kind needs pulses_per_rev > 0", ff.Name, ff.Kind)
		}
		if ff.Kind == "speed" {
			return Speed{PulsesPerRev: ff.PulsesPerRev}, nil
		}
		return Position{PulsesPerRev: ff.PulsesPerRev}, nil
	case "pressure":
		return Pressure{MaxPSI: ff.MaxPSI}, nil
	default:
		return nil, fmt.Errorf("registry: %s: unknown kind %q", ff.Name, ff.Kind)
	}
}
