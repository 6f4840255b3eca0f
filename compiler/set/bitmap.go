package set

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

type (
	// Bitmap is a dense set of small non-negative ints.
	// The zero value is an empty set.
	Bitmap struct {
		b []uint64
	}
)

// MakeBitmap returns an empty set with room for n elements.
// Copies of a Bitmap share storage, use Copy to detach.
func MakeBitmap(n int) Bitmap {
	return Bitmap{b: make([]uint64, 0, (n+63)/64)}
}

func (s *Bitmap) Set(i int) {
	w, j := i/64, i%64

	s.grow(w)

	s.b[w] |= 1 << j
}

func (s *Bitmap) Clear(i int) {
	w, j := i/64, i%64

	if w >= len(s.b) {
		return
	}

	s.b[w] &^= 1 << j
}

func (s *Bitmap) IsSet(i int) bool {
	w, j := i/64, i%64

	if s == nil || w >= len(s.b) {
		return false
	}

	return s.b[w]&(1<<j) != 0
}

// Or adds all elements of x and reports whether s changed.
func (s *Bitmap) Or(x Bitmap) (changed bool) {
	if len(x.b) != 0 {
		s.grow(len(x.b) - 1)
	}

	for i, w := range x.b {
		n := s.b[i] | w
		changed = changed || n != s.b[i]
		s.b[i] = n
	}

	return changed
}

func (s *Bitmap) AndNot(x Bitmap) {
	for i, w := range x.b {
		if i == len(s.b) {
			break
		}

		s.b[i] &^= w
	}
}

func (s *Bitmap) Copy() Bitmap {
	r := MakeBitmap(len(s.b) * 64)
	r.Or(*s)

	return r
}

func (s *Bitmap) Equal(x Bitmap) bool {
	long, short := s.b, x.b
	if len(short) > len(long) {
		long, short = short, long
	}

	for i, w := range long {
		var o uint64
		if i < len(short) {
			o = short[i]
		}

		if w != o {
			return false
		}
	}

	return true
}

func (s *Bitmap) Size() (r int) {
	if s == nil {
		return 0
	}

	for _, w := range s.b {
		r += bits.OnesCount64(w)
	}

	return r
}

// Range calls f for each element in increasing order until f returns false.
func (s *Bitmap) Range(f func(i int) bool) {
	for i, w := range s.b {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			w &^= 1 << j

			if !f(i*64 + j) {
				return
			}
		}
	}
}

func (s *Bitmap) Slice() (r []int) {
	s.Range(func(i int) bool {
		r = append(r, i)
		return true
	})

	return r
}

func (s Bitmap) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	if s.b == nil {
		return e.AppendNil(b)
	}

	b = e.AppendTag(b, tlwire.Array, -1)

	s.Range(func(i int) bool {
		b = e.AppendInt(b, i)
		return true
	})

	return e.AppendBreak(b)
}

func (s *Bitmap) grow(w int) {
	for w >= len(s.b) {
		s.b = append(s.b, 0)
	}
}
