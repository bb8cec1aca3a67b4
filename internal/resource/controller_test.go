package resource

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_SharedBudget(t *testing.T) {
	c := NewController(Config{MemoryLimit: 100})

	require.NoError(t, c.Reserve(PoolHot, 60))
	require.NoError(t, c.Reserve(PoolCache, 30))

	err := c.Reserve(PoolCache, 20)
	assert.ErrorIs(t, err, ErrOverBudget)
	assert.Equal(t, int64(30), c.InUse(PoolCache))

	c.Release(PoolHot, 60)
	require.NoError(t, c.Reserve(PoolCache, 20))

	u := c.Usage()
	assert.Equal(t, Usage{Hot: 0, Cache: 50, Limit: 100}, u)
}

func TestController_Unlimited(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.Reserve(PoolHot, 1<<40))
	assert.Equal(t, int64(1<<40), c.InUse(PoolHot))
	c.Release(PoolHot, 1<<40)
	assert.Zero(t, c.Usage().Hot)
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	require.NoError(t, c.Reserve(PoolHot, 10))
	c.Release(PoolHot, 10)
	assert.Zero(t, c.InUse(PoolHot))
	assert.Equal(t, Usage{}, c.Usage())
	require.NoError(t, c.WaitIO(context.Background(), 1<<20))
}

func TestController_WaitIOSplitsBurst(t *testing.T) {
	c := NewController(Config{IOBytesPerSec: 1 << 20})

	require.NoError(t, c.WaitIO(context.Background(), (1<<20)+10))
	assert.Equal(t, int64((1<<20)+10), c.Usage().IOBytes)
}

func TestController_WaitIOCanceled(t *testing.T) {
	c := NewController(Config{IOBytesPerSec: 10})
	require.NoError(t, c.WaitIO(context.Background(), 10))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, c.WaitIO(ctx, 10_000))
}

func TestPoolString(t *testing.T) {
	assert.Equal(t, "hot", PoolHot.String())
	assert.Equal(t, "cache", PoolCache.String())
	assert.Equal(t, "unknown", Pool(9).String())
}

func TestReaderWriter(t *testing.T) {
	c := NewController(Config{IOBytesPerSec: 1 << 20})

	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, c)
	n, err := w.Write([]byte("segment-bytes"))
	require.NoError(t, err)
	assert.Equal(t, 13, n)

	r := NewReader(context.Background(), strings.NewReader(buf.String()), c)
	out := make([]byte, 64)
	n, err = r.Read(out)
	require.NoError(t, err)
	assert.Equal(t, "segment-bytes", string(out[:n]))
	assert.Equal(t, int64(26), c.Usage().IOBytes)
}
