package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewFake(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start.Add(2*time.Hour), c.Advance(2*time.Hour))

	c.Set(start)
	var now Func = c.Now
	assert.Equal(t, start, now())
}
