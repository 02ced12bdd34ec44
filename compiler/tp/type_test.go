package tp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		name string
		typ  Type
		size int
	}{
		{"int", Int{}, 8},
		{"char", Char{}, 1},
		{"bool", Bool{}, 1},
		{"void", Void{}, 0},
		{"intptr", Ptr{X: Int{}}, 8},
		{"charptr", Ptr{X: Char{}}, 8},
		{"boolptr", Ptr{X: Bool{}}, 8},
	} {
		typ, ok := Parse(tc.name)
		if assert.True(t, ok, tc.name) {
			assert.Equal(t, tc.typ, typ)
			assert.Equal(t, tc.size, typ.Size(), tc.name)
			assert.Equal(t, tc.name, typ.(interface{ String() string }).String())
		}
	}

	_, ok := Parse("float")
	assert.False(t, ok)

	assert.Nil(t, Elem(Int{}))
	assert.Equal(t, Char{}, Elem(Ptr{X: Char{}}))
}
