package infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_NextGrowsAndCaps(t *testing.T) {
	b := NewBackoff(time.Second, 4*time.Second, 2.0)

	var last time.Duration
	for i := 0; i < 6; i++ {
		last = b.Next()
		assert.GreaterOrEqual(t, last, time.Second)
		assert.LessOrEqual(t, last, time.Duration(float64(4*time.Second)*1.2))
	}
	assert.Equal(t, 6, b.Attempts())
	assert.GreaterOrEqual(t, last, time.Duration(float64(4*time.Second)*0.8))
}

func TestBackoff_ResetReturnsToMin(t *testing.T) {
	b := NewBackoff(time.Second, time.Minute, 2.0)
	for i := 0; i < 5; i++ {
		b.Next()
	}
	b.Reset()

	assert.Equal(t, 0, b.Attempts())
	assert.LessOrEqual(t, b.Next(), time.Duration(float64(time.Second)*1.2))
}

func TestBackoff_ForIsKeyedByAttempts(t *testing.T) {
	b := NewBackoff(10*time.Second, 80*time.Second, 2.0)

	assert.Zero(t, b.For(0))
	assert.Zero(t, b.For(-3))

	within := func(d, center time.Duration) {
		t.Helper()
		assert.GreaterOrEqual(t, d, time.Duration(float64(center)*0.8))
		assert.LessOrEqual(t, d, time.Duration(float64(center)*1.2))
	}
	within(b.For(1), 10*time.Second)
	within(b.For(2), 20*time.Second)
	within(b.For(3), 40*time.Second)

	// capped, jitter never exceeds the ceiling
	for i := 0; i < 20; i++ {
		d := b.For(50)
		assert.LessOrEqual(t, d, 80*time.Second)
		assert.GreaterOrEqual(t, d, 64*time.Second)
	}
	assert.Equal(t, 0, b.Attempts(), "For must not advance Next state")
}
