package codec

import "bytes"

// SentinelSize is the length of the packet trailer.
const SentinelSize = 8

// Sentinel terminates every packet on the wire. It is not part of the payload.
var Sentinel = [SentinelSize]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xF0}

// Framer splits an unbounded byte stream into packets at each sentinel.
// Bytes may arrive one at a time; there is no length prefix.
type Framer struct {
	buf []byte
}

// Feed appends b and returns a complete packet (sentinel stripped) when b
// completes a sentinel. The returned slice is owned by the caller.
func (f *Framer) Feed(b byte) ([]byte, bool) {
	f.buf = append(f.buf, b)
	n := len(f.buf)
	if n < SentinelSize || !bytes.Equal(f.buf[n-SentinelSize:], Sentinel[:]) {
		return nil, false
	}
	pkt := make([]byte, n-SentinelSize)
	copy(pkt, f.buf)
	f.buf = f.buf[:0]
	return pkt, true
}

// FeedAll feeds p byte by byte and returns every packet completed.
func (f *Framer) FeedAll(p []byte) [][]byte {
	var out [][]byte
	for _, b := range p {
		if pkt, ok := f.Feed(b); ok {
			out = append(out, pkt)
		}
	}
	return out
}

// Buffered is the number of bytes waiting for a sentinel.
func (f *Framer) Buffered() int { return len(f.buf) }

func (f *Framer) Reset() { f.buf = f.buf[:0] }

// Frame wraps an ack code and body into wire bytes.
func Frame(ack AckCode, body []byte) []byte {
	out := make([]byte, 0, 1+len(body)+SentinelSize)
	out = append(out, byte(ack))
	out = append(out, body...)
	out = append(out, Sentinel[:]...)
	return out
}
