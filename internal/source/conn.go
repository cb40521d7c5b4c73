package source

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// Conn reads a controller through a serial-to-TCP bridge connection.
type Conn struct {
	conn net.Conn
	wait time.Duration
	buf  []byte
	pos  int
	n    int
}

// NewConn wraps c. wait bounds each read and write.
func NewConn(c net.Conn, wait time.Duration) *Conn {
	return &Conn{conn: c, wait: wait, buf: make([]byte, readChunk)}
}

func (c *Conn) Name() string { return "tcp:" + c.conn.RemoteAddr().String() }

func (c *Conn) ReadByte() (byte, error) {
	if c.pos < c.n {
		b := c.buf[c.pos]
		c.pos++
		return b, nil
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.wait))
	n, err := c.conn.Read(c.buf)
	if n > 0 {
		c.pos, c.n = 1, n
		return c.buf[0], nil
	}
	if err == nil {
		return 0, ErrNoData
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 0, ErrNoData
	}
	return 0, err
}

func (c *Conn) Write(p []byte) (int, error) {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.wait))
	n, err := c.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("tcp: write: %w", err)
	}
	return n, nil
}

// Flush discards bytes already read from the socket.
func (c *Conn) Flush() error {
	c.pos, c.n = 0, 0
	return nil
}

func (c *Conn) Close() error { return c.conn.Close() }
