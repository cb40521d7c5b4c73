// Package source provides the byte sources the acquisition loop reads from.
// A source never blocks for long: when nothing is available ReadByte returns
// ErrNoData and the caller polls again.
package source

import (
	"errors"
	"io"
)

var ErrNoData = errors.New("source: no data available")

// Source is a live link or a recorded capture.
type Source interface {
	io.ByteReader
	io.Writer
	io.Closer
}

// Flusher is implemented by sources whose pending input can be discarded.
type Flusher interface {
	Flush() error
}

// Named sources report a human readable origin for logs.
type Named interface {
	Name() string
}

// NameOf returns src's name, or "source" when it has none.
func NameOf(src Source) string {
	if n, ok := src.(Named); ok {
		return n.Name()
	}
	return "source"
}
