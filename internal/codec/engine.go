package codec

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"daq-svr/internal/observability"
	"daq-svr/internal/registry"
)

const (
	recordSize = 3
	// settingsEvery throttles outgoing settings packets to one per this many calls.
	settingsEvery = 5
)

// Store is the part of the data store the engine writes to.
type Store interface {
	Append(name string, raw float64) error
	AppendCurrent(name string) error
	AppendMissing(name string) error
	GetCurrent(name string) (float64, bool)
	SetCurrent(name string, v float64) error
	MarkConnected(id uint16) error
	MarkDisconnected(id uint16) error
	Elapsed() time.Duration
}

// Session is a copy of the engine's negotiated state.
type Session struct {
	SendingData   bool
	ReceivingData bool
	Incoming      []uint16
	Output        []uint16
	Internal      []uint16
	Removed       []uint16
	ExpectedSize  int
}

// Engine classifies and decodes incoming packets into a Store and builds
// outgoing packets from it.
type Engine struct {
	reg    *registry.Registry
	store  Store
	logger *slog.Logger

	framer Framer

	mu            sync.Mutex
	sendingData   bool
	receivingData bool
	incoming      []uint16
	output        []uint16
	internal      []uint16
	removed       []uint16
	expectedSize  int
	settingsCalls int
}

type EngineOption func(*Engine)

// WithInternal marks locally generated channels. Time-kind fields are stamped
// with the run's elapsed seconds on every data packet.
func WithInternal(ids ...uint16) EngineOption {
	return func(e *Engine) { e.internal = append(e.internal, ids...) }
}

// WithOutputs preloads the output set.
func WithOutputs(ids ...uint16) EngineOption {
	return func(e *Engine) { e.output = append(e.output, ids...) }
}

func NewEngine(reg *registry.Registry, store Store, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		reg:    reg,
		store:  store,
		logger: logger.With("component", "codec"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Feed pushes one byte through the framer.
func (e *Engine) Feed(b byte) ([]byte, bool) {
	return e.framer.Feed(b)
}

// HandlePacket classifies pkt by its ack code and decodes it. Every error is
// recoverable: the packet is dropped and prior state is kept.
func (e *Engine) HandlePacket(pkt []byte) error {
	start := time.Now()
	defer observability.ObserveParseLatency(start)

	if len(pkt) < 1 {
		observability.DecodeErrors.WithLabelValues(Reason(ErrShortPacket)).Inc()
		return ErrShortPacket
	}
	ack, err := ParseAck(pkt[0])
	if err != nil {
		observability.DecodeErrors.WithLabelValues(Reason(err)).Inc()
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sendingData = ack.SendingData()
	e.receivingData = ack.ReceivingData()

	body := pkt[1:]
	kind := "settings"
	if ack.ReceivingData() {
		kind = "data"
		err = e.decodeData(body)
	} else {
		err = e.decodeSettings(body)
	}
	if err != nil {
		observability.DecodeErrors.WithLabelValues(Reason(err)).Inc()
		return fmt.Errorf("codec: %s packet (ack %s): %w", kind, ack, err)
	}
	observability.PacketsRecv.WithLabelValues(kind).Inc()
	return nil
}

// decodeSettings replaces the incoming subscription. The record list is
// validated in full before any state changes.
func (e *Engine) decodeSettings(body []byte) error {
	if len(body)%recordSize != 0 {
		return fmt.Errorf("%w: %d bytes", ErrPartialRecord, len(body))
	}

	ids := make([]uint16, 0, len(body)/recordSize)
	size := 0
	for off := 0; off < len(body); off += recordSize {
		id := binary.LittleEndian.Uint16(body[off : off+2])
		declared := int(body[off+2])
		d, err := e.reg.Resolve(id)
		if err != nil {
			return err
		}
		if w := d.WireWidth(); w != declared {
			return fmt.Errorf("%w: %s declared %d, registry has %d", ErrWidthMismatch, d.Name, declared, w)
		}
		ids = append(ids, id)
		size += declared
	}

	for _, id := range e.incoming {
		_ = e.store.MarkDisconnected(id)
	}
	e.incoming = ids
	e.expectedSize = size
	for _, id := range ids {
		_ = e.store.MarkConnected(id)
	}
	e.logger.Debug("codec: subscription replaced", "channels", len(ids), "expected_size", size)
	return nil
}

func (e *Engine) decodeData(body []byte) error {
	if len(body) != e.expectedSize {
		e.receivingData = false
		return fmt.Errorf("%w: got %d bytes, expected %d", ErrSizeMismatch, len(body), e.expectedSize)
	}

	offset := 0
	for _, id := range e.incoming {
		fields, err := e.reg.Fields(id)
		if err != nil {
			return err
		}
		var vals []float64
		vals, offset, err = DecodeFields(fields, body, offset)
		if err != nil {
			return err
		}
		for i, f := range fields {
			_ = e.store.Append(f.Name, vals[i])
		}
	}

	elapsed := e.store.Elapsed().Seconds()
	for _, id := range e.internal {
		e.eachField(id, func(f registry.Descriptor) {
			if _, ok := f.Kind.(registry.Time); ok {
				_ = e.store.SetCurrent(f.Name, elapsed)
			}
		})
	}

	for _, id := range e.ticked() {
		e.eachField(id, func(f registry.Descriptor) { _ = e.store.AppendCurrent(f.Name) })
	}
	for _, id := range e.removed {
		e.eachField(id, func(f registry.Descriptor) { _ = e.store.AppendMissing(f.Name) })
	}
	e.removed = nil
	return nil
}

// ticked lists output and internal ids that were not already appended from
// the wire, without duplicates.
func (e *Engine) ticked() []uint16 {
	out := make([]uint16, 0, len(e.output)+len(e.internal))
	for _, set := range [][]uint16{e.output, e.internal} {
		for _, id := range set {
			if slices.Contains(e.incoming, id) || slices.Contains(out, id) {
				continue
			}
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) eachField(id uint16, fn func(registry.Descriptor)) {
	fields, err := e.reg.Fields(id)
	if err != nil {
		e.logger.Warn("codec: unknown local channel", "id", id, "err", err)
		return
	}
	for _, f := range fields {
		fn(f)
	}
}

// BuildOutgoing encodes the reply for the current session state. In settings
// mode it returns nil on all but every fifth call.
func (e *Engine) BuildOutgoing() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	ack := NewAck(e.receivingData, e.sendingData)
	var body []byte

	if e.sendingData {
		for _, id := range e.output {
			e.eachField(id, func(f registry.Descriptor) {
				v, _ := e.store.GetCurrent(f.Name)
				body = AppendValue(body, v, f.Width, f.Encoding)
			})
		}
		observability.PacketsSent.WithLabelValues("data").Inc()
		return Frame(ack, body)
	}

	e.settingsCalls++
	if e.settingsCalls < settingsEvery {
		observability.SettingsThrottled.Inc()
		return nil
	}
	e.settingsCalls = 0
	for _, id := range e.output {
		d, err := e.reg.Resolve(id)
		if err != nil {
			continue
		}
		body = binary.LittleEndian.AppendUint16(body, id)
		body = append(body, byte(d.WireWidth()))
	}
	observability.PacketsSent.WithLabelValues("settings").Inc()
	return Frame(ack, body)
}

// AddOutput attaches id to the set whose values are sent to the controller.
func (e *Engine) AddOutput(id uint16) error {
	if _, err := e.reg.Resolve(id); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if slices.Contains(e.output, id) {
		return nil
	}
	e.output = append(e.output, id)
	e.removed = slices.DeleteFunc(e.removed, func(r uint16) bool { return r == id })
	return nil
}

// RemoveOutput detaches id; it is appended once as missing on the next data packet.
func (e *Engine) RemoveOutput(id uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := slices.Index(e.output, id)
	if i < 0 {
		return
	}
	e.output = slices.Delete(e.output, i, i+1)
	e.removed = append(e.removed, id)
}

// Reset drops negotiated state for a new collection run. The output and
// internal sets are configuration and survive.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.framer.Reset()
	e.sendingData, e.receivingData = false, false
	e.incoming = nil
	e.removed = nil
	e.expectedSize = 0
	e.settingsCalls = 0
}

func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Session{
		SendingData:   e.sendingData,
		ReceivingData: e.receivingData,
		Incoming:      slices.Clone(e.incoming),
		Output:        slices.Clone(e.output),
		Internal:      slices.Clone(e.internal),
		Removed:       slices.Clone(e.removed),
		ExpectedSize:  e.expectedSize,
	}
}
