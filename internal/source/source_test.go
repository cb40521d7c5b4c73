package source

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	reads   [][]byte
	written bytes.Buffer
	resets  int
	closed  bool
	err     error
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if len(p.reads) == 0 {
		return 0, nil
	}
	n := copy(b, p.reads[0])
	p.reads = p.reads[1:]
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) { return p.written.Write(b) }
func (p *fakePort) ResetInputBuffer() error     { p.resets++; return nil }
func (p *fakePort) Close() error                { p.closed = true; return nil }

func drain(t *testing.T, src Source) ([]byte, error) {
	t.Helper()
	var out []byte
	for {
		b, err := src.ReadByte()
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
}

func TestSerialReadsOneByteAtATime(t *testing.T) {
	p := &fakePort{reads: [][]byte{{1, 2, 3}, {4}}}
	s := newSerial("ttyTEST", p)

	got, err := drain(t, s)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
	assert.Equal(t, "serial:ttyTEST", s.Name())
}

func TestSerialFlushDropsBufferedInput(t *testing.T) {
	p := &fakePort{reads: [][]byte{{1, 2, 3}}}
	s := newSerial("ttyTEST", p)

	b, err := s.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(1), b)

	require.NoError(t, s.Flush())
	assert.Equal(t, 1, p.resets)
	_, err = s.ReadByte()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestSerialTransportError(t *testing.T) {
	p := &fakePort{err: errors.New("device gone")}
	s := newSerial("ttyTEST", p)

	_, err := s.ReadByte()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)

	_, err = s.Write([]byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, p.written.Bytes())
	require.NoError(t, s.Close())
	assert.True(t, p.closed)
}

func TestReplayEndsWithEOF(t *testing.T) {
	r := NewReplay("mem", bytes.NewReader([]byte{9, 8, 7}))
	got, err := drain(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte{9, 8, 7}, got)

	n, err := r.Write([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, r.Close())
}

func TestOpenReplayFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xAA, 0xBB}, 0o644))

	r, err := OpenReplay(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := drain(t, r)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte{0xAA, 0xBB}, got)

	_, err = OpenReplay(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestRecorderTeesBytes(t *testing.T) {
	var capture bytes.Buffer
	rec := NewRecorder(NewReplay("mem", bytes.NewReader([]byte{1, 2, 3})), &capture)

	got, err := drain(t, rec)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte{1, 2, 3}, got)
	assert.Equal(t, []byte{1, 2, 3}, capture.Bytes())
	assert.Equal(t, "replay:mem", rec.Name())
}

func TestRecordWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	rec, err := Record(NewReplay("mem", bytes.NewReader([]byte{5, 6})), dir)
	require.NoError(t, err)

	_, _ = drain(t, rec)
	require.NoError(t, rec.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "capture_*.bin"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, data)
}

func TestConnTimeoutIsNoData(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	c := NewConn(server, 20*time.Millisecond)
	defer c.Close()

	_, err := c.ReadByte()
	assert.ErrorIs(t, err, ErrNoData)

	go func() { _, _ = client.Write([]byte{0x42, 0x43}) }()
	var got []byte
	deadline := time.Now().Add(time.Second)
	for len(got) < 2 && time.Now().Before(deadline) {
		b, err := c.ReadByte()
		if errors.Is(err, ErrNoData) {
			continue
		}
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, []byte{0x42, 0x43}, got)

	require.NoError(t, client.Close())
	_, err = c.ReadByte()
	assert.ErrorIs(t, err, io.EOF)
}

type endless struct{ closed atomic.Bool }

func (e *endless) ReadByte() (byte, error) { return 0x5A, nil }
func (e *endless) Write(p []byte) (int, error) { return len(p), nil }
func (e *endless) Close() error { e.closed.Store(true); return nil }

func TestRecorderCloseWhileReading(t *testing.T) {
	src := &endless{}
	rec, err := Record(src, t.TempDir())
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		for {
			if _, err := rec.ReadByte(); err != nil {
				done <- err
				return
			}
		}
	}()

	<-started
	time.Sleep(time.Millisecond)
	require.NoError(t, rec.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	case <-time.After(time.Second):
		t.Fatal("reads continued after close")
	}
	assert.True(t, src.closed.Load())
	assert.NoError(t, rec.Close(), "second close is a no-op")
}
