package source

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"daq-svr/internal/utilities"
)

// Recorder tees every byte read from a source into a capture file that
// Replay can play back later.
type Recorder struct {
	Source

	// mu guards w and closed; Close may run on another goroutine than ReadByte.
	mu     sync.Mutex
	w      *bufio.Writer
	c      io.Closer
	closed bool
}

// Record wraps src and appends its bytes to dir/capture_YYYYMMDD.bin.
func Record(src Source, dir string) (*Recorder, error) {
	f, err := utilities.OpenDaily(dir, "capture", "bin", time.Now())
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	return &Recorder{Source: src, w: bufio.NewWriter(f), c: f}, nil
}

// NewRecorder tees src into w.
func NewRecorder(src Source, w io.Writer) *Recorder {
	r := &Recorder{Source: src, w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		r.c = c
	}
	return r
}

func (r *Recorder) Name() string { return NameOf(r.Source) }

func (r *Recorder) ReadByte() (byte, error) {
	b, err := r.Source.ReadByte()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		if err == nil {
			err = io.ErrClosedPipe
		}
		return b, err
	}
	if err != nil {
		// flush on idle so the capture is current when the link stalls
		_ = r.w.Flush()
		return b, err
	}
	return b, r.w.WriteByte(b)
}

func (r *Recorder) Flush() error {
	if f, ok := r.Source.(Flusher); ok {
		return f.Flush()
	}
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	werr := r.w.Flush()
	r.mu.Unlock()

	if r.c != nil {
		if err := r.c.Close(); err != nil && werr == nil {
			werr = err
		}
	}
	if err := r.Source.Close(); err != nil {
		return err
	}
	return werr
}
