package datastore

import (
	"math"

	"daq-svr/internal/registry"
)

// series is the read surface shared by base and derived channels. Callers
// hold the store lock.
type series interface {
	name() string
	current() (float64, bool)
	at(i int) (float64, bool)
	length() int
	connected() bool
}

// Channel is a base time series fed by decoded samples.
type Channel struct {
	desc        *registry.Descriptor
	history     []float64
	value       float64
	hasValue    bool
	isConnected bool
	scale       float64
}

func newChannel(d *registry.Descriptor) *Channel {
	return &Channel{desc: d, scale: 1}
}

func (c *Channel) name() string { return c.desc.Name }

func (c *Channel) current() (float64, bool) { return c.value, c.hasValue }

func (c *Channel) at(i int) (float64, bool) {
	if i < 0 || i >= len(c.history) {
		return 0, false
	}
	return c.history[i], true
}

func (c *Channel) length() int { return len(c.history) }

func (c *Channel) connected() bool { return c.isConnected }

// add scales raw, records it as the current value and appends it.
func (c *Channel) add(raw float64) {
	v := raw * c.scale
	c.value, c.hasValue = v, true
	c.history = append(c.history, v)
}

// repeat re-appends the current value, or the missing marker when there is none.
func (c *Channel) repeat() {
	if !c.hasValue {
		c.history = append(c.history, math.NaN())
		return
	}
	c.history = append(c.history, c.value)
}

func (c *Channel) missing() {
	c.history = append(c.history, math.NaN())
}

func (c *Channel) reset() {
	c.history = c.history[:0:0]
	c.value, c.hasValue = 0, false
	c.isConnected = false
}

// IsMissing reports whether v is the null marker stored for absent samples.
func IsMissing(v float64) bool { return math.IsNaN(v) }
