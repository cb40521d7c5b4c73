package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"daq-svr/internal/source"
)

// Listener accepts the controller's serial-to-TCP bridge. Only one
// connection is active at a time; the link manager asks for the next one
// after the current one is demoted.
type Listener struct {
	ln     *net.TCPListener
	wait   time.Duration
	logger *slog.Logger
}

func Listen(addr string, wait time.Duration, lg *slog.Logger) (*Listener, error) {
	if lg == nil {
		lg = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error starting TCP listener: %w", err)
	}
	lg.Info("server: TCP listener up", "addr", ln.Addr().String())
	return &Listener{ln: ln.(*net.TCPListener), wait: wait, logger: lg.With("component", "server")}, nil
}

func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Accept waits up to the read wait for a bridge connection. It returns
// source.ErrNoData when none arrived, so it can back a link.Dialer.
func (l *Listener) Accept() (source.Source, error) {
	_ = l.ln.SetDeadline(time.Now().Add(l.wait))
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, source.ErrNoData
		}
		return nil, fmt.Errorf("server: accept: %w", err)
	}

	_ = conn.SetLinger(0)
	_ = conn.SetNoDelay(true)
	_ = conn.SetKeepAlive(true)
	_ = conn.SetKeepAlivePeriod(60 * time.Second)

	l.logger.Info("server: bridge connected", "remote", conn.RemoteAddr().String())
	return source.NewConn(conn, l.wait), nil
}

func (l *Listener) Close() error { return l.ln.Close() }
