package mathx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampDurations(t *testing.T) {
	assert.Equal(t, 10*time.Millisecond, Clamp(time.Millisecond, 10*time.Millisecond, time.Second))
	assert.Equal(t, time.Second, Clamp(5*time.Second, time.Second, 10*time.Millisecond))
	assert.True(t, Between(21, 2, 39))
	assert.False(t, Between(40, 39, 2))
}

func TestMapU16Percent(t *testing.T) {
	assert.Equal(t, uint16(0), MapU16(100, 1000, 60000, 0, 100))
	assert.Equal(t, uint16(50), MapU16(30500, 1000, 60000, 0, 100))
	assert.Equal(t, uint16(100), MapU16(65535, 1000, 60000, 0, 100))
	assert.Equal(t, uint16(0), MapU16(5, 7, 7, 0, 100))
}

func TestRoundDiv(t *testing.T) {
	assert.Equal(t, uint32(1650), RoundDiv(uint32(32768)*3300, 65535))
	assert.Equal(t, uint32(0), RoundDiv(uint32(5), 0))
}
