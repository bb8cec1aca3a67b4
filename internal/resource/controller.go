package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrOverBudget is returned by Reserve when the memory budget is spent.
var ErrOverBudget = errors.New("resource: memory budget exhausted")

// Pool names a consumer of the shared memory budget.
type Pool int

const (
	// PoolHot holds the records of the resident hot tree.
	PoolHot Pool = iota
	// PoolCache holds cached blocks of remote blobs.
	PoolCache
	numPools
)

func (p Pool) String() string {
	switch p {
	case PoolHot:
		return "hot"
	case PoolCache:
		return "cache"
	default:
		return "unknown"
	}
}

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	MemoryLimit   int64 // bytes shared by all pools
	IOBytesPerSec int64 // segment and blob transfer rate
}

// Usage is a snapshot of a Controller.
type Usage struct {
	Hot     int64
	Cache   int64
	Limit   int64
	IOBytes int64 // bytes that passed the IO limiter
}

// Controller shares one memory budget between pools and throttles IO.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	mem  *semaphore.Weighted
	used [numPools]atomic.Int64

	io      *rate.Limiter
	ioBytes atomic.Int64
}

// NewController returns a Controller enforcing cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}
	if cfg.MemoryLimit > 0 {
		c.mem = semaphore.NewWeighted(cfg.MemoryLimit)
	}
	if cfg.IOBytesPerSec > 0 {
		c.io = rate.NewLimiter(rate.Limit(cfg.IOBytesPerSec), int(min(cfg.IOBytesPerSec, 1<<30)))
	}
	return c
}

// Reserve charges n bytes to pool p. It never blocks: when the budget is
// spent it returns ErrOverBudget and the caller frees memory of its own.
func (c *Controller) Reserve(p Pool, n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.mem != nil && !c.mem.TryAcquire(n) {
		return ErrOverBudget
	}
	c.used[p].Add(n)
	return nil
}

// Release returns n bytes previously reserved by pool p.
func (c *Controller) Release(p Pool, n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.mem != nil {
		c.mem.Release(n)
	}
	c.used[p].Add(-n)
}

// InUse returns the bytes reserved by pool p.
func (c *Controller) InUse(p Pool) int64 {
	if c == nil {
		return 0
	}
	return c.used[p].Load()
}

// WaitIO blocks until n bytes may be transferred or ctx is done.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.io != nil {
		burst := c.io.Burst()
		for rest := n; rest > 0; {
			step := min(rest, burst)
			if err := c.io.WaitN(ctx, step); err != nil {
				return err
			}
			rest -= step
		}
	}
	c.ioBytes.Add(int64(n))
	return nil
}

// Usage returns a snapshot of memory and IO accounting.
func (c *Controller) Usage() Usage {
	if c == nil {
		return Usage{}
	}
	return Usage{
		Hot:     c.used[PoolHot].Load(),
		Cache:   c.used[PoolCache].Load(),
		Limit:   c.cfg.MemoryLimit,
		IOBytes: c.ioBytes.Load(),
	}
}
