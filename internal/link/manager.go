package link

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"daq-svr/internal/observability"
	"daq-svr/internal/source"
)

// ErrExhausted is returned by dialers that will never produce another source,
// such as a replay that has already been played.
var ErrExhausted = errors.New("link: no more sources")

// Dialer opens a source. source.ErrNoData means "nothing yet, try later".
type Dialer func() (source.Source, error)

// Once lets d succeed a single time.
func Once(d Dialer) Dialer {
	var used bool
	return func() (source.Source, error) {
		if used {
			return nil, ErrExhausted
		}
		src, err := d()
		if err == nil {
			used = true
		}
		return src, err
	}
}

// Manager owns the active source. It never retries inline: a failed dial
// leaves it disconnected until the next call after the retry interval.
type Manager struct {
	dial   Dialer
	retry  time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	cur         source.Source
	state       State
	lastAttempt time.Time
	onChange    []func(State)
}

func NewManager(dial Dialer, retry time.Duration, lg *slog.Logger) *Manager {
	if lg == nil {
		lg = slog.Default()
	}
	return &Manager{
		dial:   dial,
		retry:  retry,
		logger: lg.With("component", "link"),
		now:    time.Now,
	}
}

// OnChange registers fn to run on every state transition. fn must not call
// back into the manager.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Current returns the active source, dialing first if the link is down and
// the retry interval has passed. It returns nil when no source is active.
func (m *Manager) Current() source.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != nil || m.state == StateExhausted {
		return m.cur
	}
	now := m.now()
	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < m.retry {
		return nil
	}
	m.lastAttempt = now

	src, err := m.dial()
	switch {
	case err == nil:
		m.cur = src
		m.logger.Info("link: connected", "source", source.NameOf(src))
		observability.SourceConnected.Set(1)
		m.setState(StateConnected)
	case errors.Is(err, ErrExhausted):
		m.logger.Info("link: no more sources")
		m.setState(StateExhausted)
	case errors.Is(err, source.ErrNoData):
	default:
		m.logger.Error("link: dial failed", "err", err)
	}
	return m.cur
}

// Active returns the current source without dialing.
func (m *Manager) Active() source.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

// Demote drops src if it is still the active source.
func (m *Manager) Demote(src source.Source, reason string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if src == nil || m.cur != src {
		return
	}
	_ = m.cur.Close()
	m.cur = nil
	m.lastAttempt = m.now()
	observability.SourceConnected.Set(0)
	observability.SourceDemotions.WithLabelValues(reason).Inc()
	if err != nil {
		m.logger.Warn("link: source demoted", "source", source.NameOf(src), "reason", reason, "err", err)
	} else {
		m.logger.Info("link: source demoted", "source", source.NameOf(src), "reason", reason)
	}
	m.setState(StateDisconnected)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != nil {
		_ = m.cur.Close()
		m.cur = nil
		observability.SourceConnected.Set(0)
	}
}

func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	for _, fn := range m.onChange {
		fn(s)
	}
}
