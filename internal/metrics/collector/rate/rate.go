// Package rate derives per-second rates from cumulative counters.
package rate

import "time"

// Counter remembers the last cumulative value and when it was observed.
// It is owned by a single collector and is not safe for concurrent use.
type Counter struct {
	last   uint64
	lastAt time.Time
}

// Update records value at instant at and returns the per-second increase
// since the previous observation. The first observation, a non-advancing
// clock and a counter that went backwards all yield 0.
func (c *Counter) Update(value uint64, at time.Time) float64 {
	var perSecond float64

	if !c.lastAt.IsZero() {
		elapsed := at.Sub(c.lastAt).Seconds()
		if elapsed > 0 && value >= c.last {
			perSecond = float64(value-c.last) / elapsed
		}
	}

	c.last = value
	c.lastAt = at

	return perSecond
}

func (c *Counter) Reset() {
	c.last = 0
	c.lastAt = time.Time{}
}
