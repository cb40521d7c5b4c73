package source

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const readChunk = 512

// port is the subset of serial.Port a Serial uses.
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	Close() error
}

// Serial reads a controller over a serial port.
type Serial struct {
	name string
	port port
	buf  []byte
	pos  int
	n    int
}

// OpenSerial opens name at baud 8N1. readTimeout bounds each poll.
func OpenSerial(name string, baud int, readTimeout time.Duration) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serial: set timeout on %s: %w", name, err)
	}
	return newSerial(name, p), nil
}

func newSerial(name string, p port) *Serial {
	return &Serial{name: name, port: p, buf: make([]byte, readChunk)}
}

func (s *Serial) Name() string { return "serial:" + s.name }

// ReadByte returns the next buffered byte, refilling from the port when
// empty. A read timeout with no bytes yields ErrNoData.
func (s *Serial) ReadByte() (byte, error) {
	if s.pos < s.n {
		b := s.buf[s.pos]
		s.pos++
		return b, nil
	}
	n, err := s.port.Read(s.buf)
	if err != nil {
		return 0, fmt.Errorf("serial: read %s: %w", s.name, err)
	}
	if n == 0 {
		return 0, ErrNoData
	}
	s.pos, s.n = 1, n
	return s.buf[0], nil
}

func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial: write %s: %w", s.name, err)
	}
	return n, nil
}

// Flush drops buffered and pending input.
func (s *Serial) Flush() error {
	s.pos, s.n = 0, 0
	return s.port.ResetInputBuffer()
}

func (s *Serial) Close() error { return s.port.Close() }
