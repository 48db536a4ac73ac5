package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayered_ForkFree(t *testing.T) {
	l := NewLayered[string, int]()
	l.Set("a", 1)

	l.Fork()
	assert.Equal(t, 1, l.Depth())

	v, ok := l.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	l.Set("a", 2)
	l.Set("b", 3)
	v, _ = l.Get("a")
	assert.Equal(t, 2, v)

	count := 0
	l.Range(func(string, int) bool { count++; return true })
	assert.Equal(t, 2, count)

	assert.True(t, l.Free())
	v, _ = l.Get("a")
	assert.Equal(t, 1, v)
	_, ok = l.Get("b")
	assert.False(t, ok)

	assert.False(t, l.Free(), "base layer is kept")
}

func TestLayered_Reset(t *testing.T) {
	l := NewLayered[string, int]()
	l.Set("a", 1)
	l.Fork()
	l.Reset()

	assert.Equal(t, 0, l.Depth())
	_, ok := l.Get("a")
	assert.False(t, ok)
}
