// Package pool provides bounded worker pools for background work.
package pool

import "errors"

var (
	// ErrPoolClosed is returned when submitting to a released pool.
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrPoolOverload is returned when the pool and its queue are full.
	ErrPoolOverload = errors.New("worker pool is overloaded")
)
