package amd64

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNames(t *testing.T) {
	assert.Equal(t, "%rax", RAX.String())
	assert.Equal(t, "%al", RAX.Byte())
	assert.Equal(t, "%r11b", R11.Byte())
	assert.Equal(t, "%sil", RSI.Byte())

	r, ok := Arg(4)
	assert.True(t, ok)
	assert.Equal(t, RCX, r)

	_, ok = Arg(7)
	assert.False(t, ok)

	_, ok = Arg(0)
	assert.False(t, ok)

	assert.Equal(t, "le", LE.String())
	assert.Equal(t, "b", Suffix(1))
	assert.Equal(t, "q", Suffix(8))

	assert.Equal(t, "%cl", RCX.Sized(1))
	assert.Equal(t, "%rcx", RCX.Sized(8))
}
