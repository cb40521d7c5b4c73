package datastore

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"daq-svr/internal/observability"
	"daq-svr/internal/registry"
)

var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrReadOnly       = errors.New("derived channels are read-only")
)

// Store owns every channel and serializes all access through one lock.
type Store struct {
	mu sync.Mutex

	reg     *registry.Registry
	base    map[string]*Channel
	derived map[string]*DerivedChannel
	order   []string
	byID    map[uint16][]*Channel

	origin time.Time
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Store)

func WithLogger(lg *slog.Logger) Option {
	return func(s *Store) { s.logger = lg }
}

// WithClock replaces time.Now for the elapsed-time origin.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates one channel per registry field and one per derivation.
func New(reg *registry.Registry, defs []Derivation, opts ...Option) (*Store, error) {
	s := &Store{
		reg:    reg,
		base:   make(map[string]*Channel),
		byID:   make(map[uint16][]*Channel),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "datastore")

	for _, id := range reg.IDs() {
		fields, err := reg.Fields(id)
		if err != nil {
			return nil, err
		}
		for i := range fields {
			d, err := reg.ByName(fields[i].Name)
			if err != nil {
				return nil, err
			}
			ch := newChannel(d)
			s.base[d.Name] = ch
			s.byID[id] = append(s.byID[id], ch)
			s.order = append(s.order, d.Name)
		}
	}

	derived, order, err := link(s.base, defs)
	if err != nil {
		return nil, fmt.Errorf("datastore: %w", err)
	}
	s.derived = derived
	s.order = append(s.order, order...)
	s.origin = s.now()
	return s, nil
}

func (s *Store) Registry() *registry.Registry { return s.reg }

func (s *Store) lookup(name string) (series, bool) {
	if ch, ok := s.base[name]; ok {
		return ch, true
	}
	if d, ok := s.derived[name]; ok {
		return d, true
	}
	return nil, false
}

func (s *Store) miss(op, name string) error {
	observability.StoreLookupMisses.WithLabelValues(op).Inc()
	s.logger.Warn("datastore: unknown channel", "op", op, "name", name)
	return fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

// GetCurrent returns the latest value of name, if any.
func (s *Store) GetCurrent(name string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.lookup(name)
	if !ok {
		_ = s.miss("get_current", name)
		return 0, false
	}
	return ch.current()
}

// SetCurrent overrides the current value without touching history.
func (s *Store) SetCurrent(name string, v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.base[name]
	if !ok {
		if _, derived := s.derived[name]; derived {
			return fmt.Errorf("%w: %q", ErrReadOnly, name)
		}
		return s.miss("set_current", name)
	}
	ch.value, ch.hasValue = v, true
	return nil
}

func (s *Store) GetHistory(name string, index int) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.lookup(name)
	if !ok {
		_ = s.miss("get_history", name)
		return 0, false
	}
	return ch.at(index)
}

// GetRange returns up to count samples ending at end (inclusive), clamped to
// the available history. A negative end means the latest sample.
func (s *Store) GetRange(name string, end, count int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.lookup(name)
	if !ok {
		_ = s.miss("get_range", name)
		return nil
	}
	n := ch.length()
	if n == 0 || count <= 0 {
		return []float64{}
	}
	if end < 0 || end >= n {
		end = n - 1
	}
	start := end - count + 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, end-start+1)
	for i := start; i <= end; i++ {
		v, _ := ch.at(i)
		out = append(out, v)
	}
	return out
}

func (s *Store) Len(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.lookup(name)
	if !ok {
		return 0
	}
	return ch.length()
}

// Append scales raw by the channel's factor and appends it.
func (s *Store) Append(name string, raw float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.base[name]
	if !ok {
		return s.miss("append", name)
	}
	ch.add(raw)
	return nil
}

// AppendFields appends one value per field of name. A composite name takes
// its sub-fields in order; any other name takes exactly one value.
func (s *Store) AppendFields(name string, values ...float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.reg.ByName(name)
	if err != nil {
		return s.miss("append_fields", name)
	}
	if !d.IsComposite() {
		if len(values) != 1 {
			return fmt.Errorf("datastore: %s takes 1 value, got %d", name, len(values))
		}
		s.base[name].add(values[0])
		return nil
	}
	if len(values) != len(d.Fields) {
		return fmt.Errorf("datastore: %s takes %d values, got %d", name, len(d.Fields), len(values))
	}
	for i, f := range d.Fields {
		s.base[f.Name].add(values[i])
	}
	return nil
}

// AppendCurrent re-appends name's current value to keep series aligned.
func (s *Store) AppendCurrent(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.base[name]
	if !ok {
		return s.miss("append_current", name)
	}
	ch.repeat()
	return nil
}

// AppendMissing appends the null marker.
func (s *Store) AppendMissing(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.base[name]
	if !ok {
		return s.miss("append_missing", name)
	}
	ch.missing()
	return nil
}

// Reset starts a new collection run.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.base {
		ch.reset()
	}
	s.origin = s.now()
}

func (s *Store) MarkConnected(id uint16) error    { return s.setConnected(id, true) }
func (s *Store) MarkDisconnected(id uint16) error { return s.setConnected(id, false) }

func (s *Store) setConnected(id uint16, v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chs, ok := s.byID[id]
	if !ok {
		observability.StoreLookupMisses.WithLabelValues("connect").Inc()
		return fmt.Errorf("%w: id %d", ErrUnknownChannel, id)
	}
	for _, ch := range chs {
		ch.isConnected = v
	}
	return nil
}

func (s *Store) IsConnected(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.lookup(name)
	return ok && ch.connected()
}

func (s *Store) SetScale(name string, factor float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.base[name]
	if !ok {
		return s.miss("set_scale", name)
	}
	ch.scale = factor
	return nil
}

func (s *Store) IsDerived(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.derived[name]
	return ok
}

// Names lists registry channels in id order followed by derived channels in
// dependency order.
func (s *Store) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Elapsed is the time since the current run started.
func (s *Store) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now().Sub(s.origin)
}

// Snapshot is a consistent view of every channel's current state.
type Snapshot struct {
	Values    map[string]float64
	Connected []string
	Elapsed   time.Duration
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Values:  make(map[string]float64, len(s.order)),
		Elapsed: s.now().Sub(s.origin),
	}
	for _, name := range s.order {
		ch, _ := s.lookup(name)
		if v, ok := ch.current(); ok {
			snap.Values[name] = v
		}
		if ch.connected() {
			snap.Connected = append(snap.Connected, name)
		}
	}
	sort.Strings(snap.Connected)
	return snap
}
