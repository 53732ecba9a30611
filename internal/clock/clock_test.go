package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual_AdvanceAndSet(t *testing.T) {
	c := NewManual(10)
	assert.Equal(t, uint64(10), c.Now())

	assert.Equal(t, uint64(15), c.Advance(5))
	c.Set(100)
	assert.Equal(t, uint64(100), c.Now())

	c.Set(50)
	assert.Equal(t, uint64(100), c.Now(), "clock must not move backwards")
}

func TestWall_TicksSinceGenesis(t *testing.T) {
	genesis := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w := NewWall(genesis, 10*time.Minute)

	w.now = func() time.Time { return genesis.Add(95 * time.Minute) }
	assert.Equal(t, uint64(9), w.Now())

	w.now = func() time.Time { return genesis.Add(-time.Hour) }
	assert.Equal(t, uint64(9), w.Now(), "a stepped-back system clock keeps the last tick")

	w.now = func() time.Time { return genesis.Add(24 * time.Hour) }
	assert.Equal(t, uint64(144), w.Now())
}

func TestWall_DefaultPeriod(t *testing.T) {
	genesis := time.Now().Add(-3 * time.Minute)
	w := NewWall(genesis, 0)
	assert.GreaterOrEqual(t, w.Now(), uint64(2))
}
