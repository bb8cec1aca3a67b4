package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(4711)
	b := NewRNG(4711)

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, a.Value(16), b.Value(16))

	a.Reset()
	c := NewRNG(4711)
	assert.Equal(t, c.Key(), a.Key())
	assert.Equal(t, int64(4711), a.Seed())
}

func TestRNG_Value(t *testing.T) {
	v := NewRNG(1).Value(128)
	require.Len(t, v, 128)
	for _, c := range v {
		assert.Contains(t, alphanumeric, string(c))
	}

	k := NewRNG(1).KeyIn(100, 10)
	assert.GreaterOrEqual(t, k, uint64(100))
	assert.Less(t, k, uint64(110))
}

func TestModel(t *testing.T) {
	m := NewModel(4)
	m.Put(3, []byte("ab"))
	m.Put(3, []byte("xyz"))
	m.Put(1, []byte("q"))

	v, ok := m.Get(3)
	require.True(t, ok)
	assert.Equal(t, []byte("xyz\x00"), v)
	assert.Equal(t, []byte("xyz"), Trim(v))
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []uint64{1, 3}, m.Keys())

	s := m.Scan(1, 4)
	require.Len(t, s, 4)
	assert.True(t, s[0].Found)
	assert.False(t, s[1].Found)
	assert.True(t, s[2].Found)
	assert.False(t, s[3].Found)

	assert.Nil(t, m.Scan(5, 4))
	assert.Len(t, m.Scan(^uint64(0)-1, ^uint64(0)), 2)
}
