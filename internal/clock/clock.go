package clock

import (
	"sync/atomic"
	"time"
)

// Manual is a tick counter advanced explicitly by its owner. It never goes backwards.
type Manual struct {
	tick atomic.Uint64
}

func NewManual(start uint64) *Manual {
	m := &Manual{}
	m.tick.Store(start)
	return m
}

func (m *Manual) Now() uint64 {
	return m.tick.Load()
}

// Advance moves the clock forward by n ticks and returns the new tick.
func (m *Manual) Advance(n uint64) uint64 {
	return m.tick.Add(n)
}

// Set moves the clock to tick. Earlier ticks are ignored.
func (m *Manual) Set(tick uint64) {
	for {
		cur := m.tick.Load()
		if tick <= cur || m.tick.CompareAndSwap(cur, tick) {
			return
		}
	}
}

// Wall derives ticks from wall-clock time elapsed since genesis. Readings are
// clamped so the tick never decreases, even if the system clock steps back.
type Wall struct {
	genesis time.Time
	period  time.Duration
	now     func() time.Time
	last    atomic.Uint64
}

func NewWall(genesis time.Time, period time.Duration) *Wall {
	if period <= 0 {
		period = time.Minute
	}
	return &Wall{
		genesis: genesis,
		period:  period,
		now:     time.Now,
	}
}

func (w *Wall) Now() uint64 {
	var tick uint64
	if elapsed := w.now().Sub(w.genesis); elapsed > 0 {
		tick = uint64(elapsed / w.period)
	}
	for {
		last := w.last.Load()
		if tick <= last {
			return last
		}
		if w.last.CompareAndSwap(last, tick) {
			return tick
		}
	}
}
