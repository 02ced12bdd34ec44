package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBits(t *testing.T) {
	var s Bits[int]

	assert.False(t, s.IsSet(100))
	assert.Zero(t, s.Size())

	s.Set(1)
	s.Set(64)
	s.Set(130)

	assert.True(t, s.IsSet(64))
	assert.False(t, s.IsSet(65))
	assert.Equal(t, []int{1, 64, 130}, s.Slice())
	assert.Equal(t, 3, s.Size())

	c := s.Copy()
	c.Clear(130)
	c.Clear(1000)

	assert.True(t, s.IsSet(130), "copy is independent")
	assert.False(t, s.Equal(c))

	s.Clear(130)
	assert.True(t, s.Equal(c), "trailing zero words do not matter")

	m := Of(2, 3)
	m.Merge(Of(3, 200))
	assert.Equal(t, []int{2, 3, 200}, m.Slice())

	assert.Panics(t, func() { s.Set(-1) })
}
