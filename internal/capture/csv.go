// Package capture moves a run between the data store and CSV files.
//
// The header row names each column's channel. Sub-fields of a composite
// sensor are written under the composite's name, once per field, so a
// composite reads back as a single multi-value append.
package capture

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"

	"daq-svr/internal/datastore"
	"daq-svr/internal/registry"
)

var ErrNoHeader = errors.New("capture: missing header row")

// WriteCSV writes one row per sample index for names (every store channel
// when names is empty). Missing samples are empty cells. Naming any sub-field
// of a composite exports all of its fields in field order at the position of
// the first one named.
func WriteCSV(w io.Writer, store *datastore.Store, names []string) error {
	if len(names) == 0 {
		names = store.Names()
	}
	names, header := expandComposites(store.Registry(), names)
	rows := 0
	for _, name := range names {
		rows = max(rows, store.Len(name))
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("capture: write header: %w", err)
	}
	record := make([]string, len(names))
	for i := 0; i < rows; i++ {
		for j, name := range names {
			record[j] = ""
			if v, ok := store.GetHistory(name, i); ok && !math.IsNaN(v) {
				record[j] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("capture: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// expandComposites returns the channels to export and their header cells.
// A composite's fields are kept together so ReadCSV can regroup them.
func expandComposites(reg *registry.Registry, names []string) (channels, header []string) {
	seen := make(map[string]bool)
	for _, name := range names {
		d, err := reg.ByName(name)
		if err != nil {
			channels, header = append(channels, name), append(header, name)
			continue
		}
		parent := d
		if d.Composite != "" {
			if parent, err = reg.ByName(d.Composite); err != nil {
				channels, header = append(channels, name), append(header, name)
				continue
			}
		}
		if !parent.IsComposite() {
			channels, header = append(channels, name), append(header, name)
			continue
		}
		if seen[parent.Name] {
			continue
		}
		seen[parent.Name] = true
		for _, f := range parent.Fields {
			channels, header = append(channels, f.Name), append(header, parent.Name)
		}
	}
	return channels, header
}

// column is a run of header cells that feed one store append.
type column struct {
	name   string
	fields []registry.Descriptor // set for composites
	start  int
	width  int
}

// ReadCSV appends every row of r to store and returns the number of rows
// read. Derived and unknown columns are skipped.
func ReadCSV(r io.Reader, store *datastore.Store, lg *slog.Logger) (int, error) {
	if lg == nil {
		lg = slog.Default()
	}
	lg = lg.With("component", "capture")

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, ErrNoHeader
	}
	if err != nil {
		return 0, fmt.Errorf("capture: read header: %w", err)
	}
	cols := groupColumns(header, store, lg)

	rows := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("capture: row %d: %w", rows+1, err)
		}
		for _, c := range cols {
			if err := appendColumn(store, c, rec); err != nil {
				return rows, fmt.Errorf("capture: row %d: %w", rows+1, err)
			}
		}
		rows++
	}
}

func groupColumns(header []string, store *datastore.Store, lg *slog.Logger) []column {
	reg := store.Registry()
	var cols []column
	for i := 0; i < len(header); {
		name := header[i]
		d, err := reg.ByName(name)
		if err != nil || store.IsDerived(name) {
			lg.Warn("capture: column skipped", "column", name, "index", i)
			i++
			continue
		}
		if !d.IsComposite() {
			cols = append(cols, column{name: name, start: i, width: 1})
			i++
			continue
		}
		n := 0
		for i+n < len(header) && header[i+n] == name && n < len(d.Fields) {
			n++
		}
		if n != len(d.Fields) {
			lg.Warn("capture: composite column count mismatch", "column", name, "got", n, "want", len(d.Fields))
			i += n
			continue
		}
		cols = append(cols, column{name: name, fields: d.Fields, start: i, width: n})
		i += n
	}
	return cols
}

func appendColumn(store *datastore.Store, c column, rec []string) error {
	vals := make([]float64, c.width)
	present := make([]bool, c.width)
	complete := true
	for k := range c.width {
		idx := c.start + k
		if idx >= len(rec) || rec[idx] == "" {
			complete = false
			continue
		}
		v, err := strconv.ParseFloat(rec[idx], 64)
		if err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
		vals[k], present[k] = v, true
	}

	if complete {
		return store.AppendFields(c.name, vals...)
	}
	names := []string{c.name}
	if c.fields != nil {
		names = names[:0]
		for _, f := range c.fields {
			names = append(names, f.Name)
		}
	}
	for k, name := range names {
		var err error
		if present[k] {
			err = store.Append(name, vals[k])
		} else {
			err = store.AppendMissing(name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
