package conv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint64ToInt(t *testing.T) {
	got, err := Uint64ToInt(42)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	got, err = Uint64ToInt(uint64(math.MaxInt))
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, got)

	_, err = Uint64ToInt(math.MaxUint64)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestInt64ToInt(t *testing.T) {
	got, err := Int64ToInt(0)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = Int64ToInt(-1)
	assert.ErrorIs(t, err, ErrOverflow)
}
