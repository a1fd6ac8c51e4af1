package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Config defines the configuration for a worker pool.
type Config struct {
	// Capacity is the maximum number of concurrently running workers.
	Capacity int
	// ExpiryDuration is how long idle workers are kept alive.
	ExpiryDuration time.Duration
	// Nonblocking makes Submit return ErrPoolOverload instead of waiting
	// when the pool is full.
	Nonblocking bool
	// MaxBlockingTasks bounds the wait queue when Nonblocking is false
	// (0 means unbounded).
	MaxBlockingTasks int
	// PanicHandler receives panics recovered from tasks. A logging handler
	// is installed when nil.
	PanicHandler func(any)
}

// DefaultConfig returns a general-purpose pool configuration.
func DefaultConfig() *Config {
	return &Config{
		Capacity:       10,
		ExpiryDuration: 30 * time.Second,
	}
}

// IndexingConfig returns the configuration for document-indexing jobs:
// a small fixed worker count so uploads queue instead of saturating the
// embedding backend.
func IndexingConfig(workers int) *Config {
	if workers <= 0 {
		workers = 5
	}
	return &Config{
		Capacity:         workers,
		ExpiryDuration:   60 * time.Second,
		Nonblocking:      true,
		MaxBlockingTasks: 100,
	}
}

// Pool is a named, bounded worker pool backed by ants.
type Pool struct {
	name   string
	pool   *ants.Pool
	stats  poolStats
	closed atomic.Bool
	mu     sync.Mutex
}

type poolStats struct {
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// New creates a worker pool with the given configuration.
func New(name string, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pool{name: name}

	opts := []ants.Option{
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
	}
	if config.PanicHandler != nil {
		opts = append(opts, ants.WithPanicHandler(config.PanicHandler))
	} else {
		opts = append(opts, ants.WithPanicHandler(func(r any) {
			logger.Errorw("worker panic recovered", "pool", name, "panic", r)
		}))
	}

	inner, err := ants.NewPool(config.Capacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = inner

	logger.Infow("worker pool created", "name", name, "capacity", config.Capacity)
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Running returns the number of currently running workers.
func (p *Pool) Running() int { return p.pool.Running() }

// Free returns the number of available worker slots.
func (p *Pool) Free() int { return p.pool.Free() }

// Submit schedules task for execution.
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.stats.failed.Add(1)
				panic(r) // let the ants panic handler log it
			}
			p.stats.completed.Add(1)
		}()
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.rejected.Add(1)
			return ErrPoolOverload
		}
		p.stats.failed.Add(1)
		return err
	}
	// Counted on acceptance, so queued tasks show up before they run.
	p.stats.submitted.Add(1)
	return nil
}

// Release shuts the pool down without waiting for queued tasks.
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Swap(true) {
		return
	}
	p.pool.Release()
	logger.Infow("worker pool released", "name", p.name)
}

// ReleaseTimeout shuts the pool down, waiting up to timeout for running
// tasks to finish.
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed.Swap(true) {
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Failed:    p.stats.failed.Load(),
		Rejected:  p.stats.rejected.Load(),
	}
}
