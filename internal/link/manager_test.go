package link

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daq-svr/internal/source"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(dial Dialer) (*Manager, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewManager(dial, time.Second, nil)
	m.now = c.now
	return m, c
}

func replay(data ...byte) source.Source {
	return source.NewReplay("mem", bytes.NewReader(data))
}

func TestCurrentDialsOnce(t *testing.T) {
	calls := 0
	m, _ := newTestManager(func() (source.Source, error) {
		calls++
		return replay(1), nil
	})

	src := m.Current()
	require.NotNil(t, src)
	assert.Same(t, src, m.Current())
	assert.Equal(t, 1, calls)
	assert.Equal(t, StateConnected, m.State())
}

func TestFailedDialWaitsForRetryInterval(t *testing.T) {
	calls := 0
	m, c := newTestManager(func() (source.Source, error) {
		calls++
		return nil, errors.New("port busy")
	})

	assert.Nil(t, m.Current())
	assert.Nil(t, m.Current())
	assert.Equal(t, 1, calls)

	c.advance(time.Second)
	assert.Nil(t, m.Current())
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateDisconnected, m.State())
}

func TestDemoteThenRedial(t *testing.T) {
	m, c := newTestManager(func() (source.Source, error) { return replay(1), nil })

	var states []State
	m.OnChange(func(s State) { states = append(states, s) })

	first := m.Current()
	require.NotNil(t, first)
	m.Demote(first, "eof", nil)
	assert.Nil(t, m.Active())
	assert.Nil(t, m.Current(), "re-dial waits for the retry interval")

	c.advance(2 * time.Second)
	second := m.Current()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Equal(t, []State{StateConnected, StateDisconnected, StateConnected}, states)
}

func TestDemoteIgnoresStaleSource(t *testing.T) {
	m, _ := newTestManager(func() (source.Source, error) { return replay(1), nil })
	cur := m.Current()
	m.Demote(replay(2), "eof", nil)
	assert.Same(t, cur, m.Active())
}

func TestOnceExhausts(t *testing.T) {
	m, c := newTestManager(Once(func() (source.Source, error) { return replay(1), nil }))

	src := m.Current()
	require.NotNil(t, src)
	m.Demote(src, "eof", nil)

	c.advance(2 * time.Second)
	assert.Nil(t, m.Current())
	assert.Equal(t, StateExhausted, m.State())
	assert.Equal(t, "exhausted", m.State().String())
}

func TestNoDataDialIsQuiet(t *testing.T) {
	m, _ := newTestManager(func() (source.Source, error) { return nil, source.ErrNoData })
	assert.Nil(t, m.Current())
	assert.Equal(t, StateDisconnected, m.State())
}
