package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitmap(t *testing.T) {
	var s Bitmap

	assert.Equal(t, 0, s.Size())
	assert.False(t, s.IsSet(5))

	s.Set(1)
	s.Set(70)
	s.Set(3)

	assert.True(t, s.IsSet(70))
	assert.Equal(t, 3, s.Size())
	assert.Equal(t, []int{1, 3, 70}, s.Slice())

	x := MakeBitmap(10)
	x.Set(3)
	x.Set(4)

	c := s.Copy()
	assert.True(t, c.Equal(s))

	assert.True(t, c.Or(x))
	assert.False(t, c.Or(x))
	assert.Equal(t, []int{1, 3, 4, 70}, c.Slice())

	c.AndNot(x)
	assert.Equal(t, []int{1, 70}, c.Slice())

	c.Clear(70)
	assert.False(t, c.IsSet(70))
	assert.Equal(t, 1, c.Size())

	assert.False(t, c.Equal(s))

	var e Bitmap
	e.Set(130)
	e.Clear(130)
	assert.True(t, e.Equal(Bitmap{}))

	t.Logf("bitmap: %v", s.Slice())
}
