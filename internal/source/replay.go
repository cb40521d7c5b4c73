package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Replay feeds a recorded binary capture through the same framing path as a
// live link. Writes are accepted and discarded; the end of the capture is io.EOF.
type Replay struct {
	name string
	r    *bufio.Reader
	c    io.Closer
}

func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	return &Replay{name: path, r: bufio.NewReader(f), c: f}, nil
}

// NewReplay replays r; name is used in logs.
func NewReplay(name string, r io.Reader) *Replay {
	rp := &Replay{name: name, r: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok {
		rp.c = c
	}
	return rp
}

func (r *Replay) Name() string { return "replay:" + r.name }

func (r *Replay) ReadByte() (byte, error) { return r.r.ReadByte() }

func (r *Replay) Write(p []byte) (int, error) { return len(p), nil }

func (r *Replay) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}
