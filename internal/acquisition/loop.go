package acquisition

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"daq-svr/internal/codec"
	"daq-svr/internal/datastore"
	"daq-svr/internal/link"
	"daq-svr/internal/observability"
	"daq-svr/internal/source"
)

const defaultPoll = 5 * time.Millisecond

// Loop pulls bytes from the active source into the protocol engine and
// sends the engine's replies on a separate transmit tick.
type Loop struct {
	engine *codec.Engine
	store  *datastore.Store
	links  *link.Manager
	logger *slog.Logger
	poll   time.Duration
	errLog *rate.Limiter

	enabled  atomic.Bool
	stopped  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once

	// owned by the Run goroutine
	running bool

	mu    sync.Mutex
	runID string
	onRun []func(runID string)
}

type Option func(*Loop)

// WithPoll sets how long the loop sleeps when there is nothing to read.
func WithPoll(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.poll = d
		}
	}
}

// WithErrorLogLimit caps decode error logging to perSecond entries.
func WithErrorLogLimit(perSecond float64, burst int) Option {
	return func(l *Loop) { l.errLog = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func NewLoop(engine *codec.Engine, store *datastore.Store, links *link.Manager, lg *slog.Logger, opts ...Option) *Loop {
	if lg == nil {
		lg = slog.Default()
	}
	l := &Loop{
		engine: engine,
		store:  store,
		links:  links,
		logger: lg.With("component", "acquisition"),
		poll:   defaultPoll,
		errLog: rate.NewLimiter(rate.Limit(10), 20),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnRun registers fn to be called with the new run ID whenever collection starts.
func (l *Loop) OnRun(fn func(runID string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onRun = append(l.onRun, fn)
}

// SetEnabled flips the collection flag. The loop picks it up on its next iteration.
func (l *Loop) SetEnabled(v bool) { l.enabled.Store(v) }

func (l *Loop) Enabled() bool { return l.enabled.Load() }

// Stop asks Run and RunTransmit to return.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		close(l.done)
	})
}

func (l *Loop) RunID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runID
}

// Run iterates until Stop is called or the link can never produce another
// source. It never returns an error: every read or decode failure is
// handled in place.
func (l *Loop) Run() {
	l.logger.Info("acquisition: loop started")
	defer l.logger.Info("acquisition: loop stopped")

	for !l.stopped.Load() {
		if !l.reconcile() {
			l.sleep()
			continue
		}

		src := l.links.Current()
		if src == nil {
			if l.links.State() == link.StateExhausted {
				return
			}
			l.sleep()
			continue
		}

		if !l.step(src) {
			l.sleep()
		}
	}
}

// reconcile applies the collection flag and reports whether collection is on.
func (l *Loop) reconcile() bool {
	want := l.enabled.Load()
	switch {
	case want && !l.running:
		l.startRun()
	case !want && l.running:
		l.logger.Info("acquisition: collection stopped", "run_id", l.RunID())
	}
	l.running = want
	return want
}

func (l *Loop) startRun() {
	l.store.Reset()
	l.engine.Reset()
	id := uuid.NewString()

	l.mu.Lock()
	l.runID = id
	hooks := append([]func(string){}, l.onRun...)
	l.mu.Unlock()

	l.logger.Info("acquisition: collection started", "run_id", id)
	for _, fn := range hooks {
		fn(id)
	}
}

// step reads and processes one byte. It reports false when the source had
// nothing to give.
func (l *Loop) step(src source.Source) bool {
	b, err := src.ReadByte()
	if err != nil {
		switch {
		case errors.Is(err, source.ErrNoData):
		case errors.Is(err, io.EOF):
			l.links.Demote(src, "eof", nil)
		default:
			l.links.Demote(src, "transport", err)
		}
		return false
	}
	observability.BytesRead.Inc()

	pkt, ok := l.engine.Feed(b)
	if !ok {
		return true
	}
	if err := l.engine.HandlePacket(pkt); err != nil {
		if l.errLog.Allow() {
			l.logger.Warn("acquisition: packet dropped", "err", err, "bytes", len(pkt))
		}
		if errors.Is(err, codec.ErrSizeMismatch) {
			if f, ok := src.(source.Flusher); ok {
				if ferr := f.Flush(); ferr != nil {
					l.logger.Warn("acquisition: flush failed", "err", ferr)
				}
			}
		}
	}
	return true
}

// RunTransmit sends the engine's outgoing packet every interval until Stop.
func (l *Loop) RunTransmit(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-t.C:
			l.TransmitOnce()
		}
	}
}

// TransmitOnce builds and writes one outgoing packet if collection is on and
// a source is active. A failed write demotes the source.
func (l *Loop) TransmitOnce() {
	if !l.enabled.Load() {
		return
	}
	src := l.links.Active()
	if src == nil {
		return
	}
	pkt := l.engine.BuildOutgoing()
	if pkt == nil {
		return
	}
	if _, err := src.Write(pkt); err != nil {
		l.links.Demote(src, "write", err)
	}
}

func (l *Loop) sleep() {
	t := time.NewTimer(l.poll)
	defer t.Stop()
	select {
	case <-l.done:
	case <-t.C:
	}
}
