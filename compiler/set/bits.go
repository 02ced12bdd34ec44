package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	Key interface {
		~int | ~int64
	}

	// Bits is a dense set of small non-negative keys.
	// Zero value is an empty set.
	Bits[K Key] struct {
		b []uint64
	}
)

func Of[K Key](k ...K) Bits[K] {
	var s Bits[K]

	for _, k := range k {
		s.Set(k)
	}

	return s
}

func (s Bits[K]) Copy() Bits[K] {
	return Bits[K]{b: append([]uint64(nil), s.b...)}
}

func (s *Bits[K]) Set(k K) {
	i, j := ij(k)

	for i >= len(s.b) {
		s.b = append(s.b, 0)
	}

	s.b[i] |= 1 << j
}

func (s *Bits[K]) Clear(k K) {
	i, j := ij(k)

	if i >= len(s.b) {
		return
	}

	s.b[i] &^= 1 << j
}

func (s Bits[K]) IsSet(k K) bool {
	i, j := ij(k)

	if i >= len(s.b) {
		return false
	}

	return s.b[i]&(1<<j) != 0
}

// Merge adds all keys of x to s.
func (s *Bits[K]) Merge(x Bits[K]) {
	for len(s.b) < len(x.b) {
		s.b = append(s.b, 0)
	}

	for i, w := range x.b {
		s.b[i] |= w
	}
}

func (s Bits[K]) Equal(x Bits[K]) bool {
	n := len(s.b)
	if len(x.b) > n {
		n = len(x.b)
	}

	for i := 0; i < n; i++ {
		if s.word(i) != x.word(i) {
			return false
		}
	}

	return true
}

func (s Bits[K]) Size() (r int) {
	for _, w := range s.b {
		r += bits.OnesCount64(w)
	}

	return r
}

func (s Bits[K]) Range(f func(k K) bool) {
	for i, w := range s.b {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			w &^= 1 << j

			if !f(K(i*64 + j)) {
				return
			}
		}
	}
}

func (s Bits[K]) Slice() (r []K) {
	s.Range(func(k K) bool {
		r = append(r, k)
		return true
	})

	return r
}

func (s Bits[K]) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(k K) bool {
		b = e.AppendInt(b, int(k))

		return true
	})

	b = e.AppendBreak(b)

	return b
}

func (s Bits[K]) word(i int) uint64 {
	if i >= len(s.b) {
		return 0
	}

	return s.b[i]
}

func ij[K Key](k K) (i, j int) {
	if k < 0 {
		panic(k)
	}

	p := int(k)

	return p / 64, p % 64
}
