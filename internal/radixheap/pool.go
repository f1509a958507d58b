// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package radixheap implements the external-memory monotone priority
// queue that drives every induction pass: items are bucketed by the
// highest 8-bit digit at which the key differs from the current
// minimum (the key's own digit there selects the bucket), each bucket
// backed by a FIFO whose head and tail live in
// RAM and whose middle spills to disk through internal/stream.
package radixheap

import "sync"

// item is one (key, value) pair as stored in a bucket.
type item[K, V Item] struct {
	key K
	val V
}

// ramPool is a shared pool of reusable RAM queues (plain Go slices
// used as FIFOs) handed out to any bucket queue that needs a fresh
// head or tail buffer. A mutex-guarded free list is enough: the heap
// has exactly one producer (the owning pass) and one background I/O
// goroutine, so a lock-free ring would solve a contention problem
// that does not exist here. Pre-sized reusable slots, blocking take,
// non-blocking return.
type ramPool[K, V Item] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	cap      int
	free     [][]item[K, V]
}

func newRAMPool[K, V Item](n, capacity int) *ramPool[K, V] {
	p := &ramPool[K, V]{cap: capacity}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < n; i++ {
		p.free = append(p.free, make([]item[K, V], 0, capacity))
	}
	return p
}

// take blocks until a free queue is available.
func (p *ramPool[K, V]) take() []item[K, V] {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.free) == 0 {
		p.cond.Wait()
	}
	n := len(p.free) - 1
	q := p.free[n]
	p.free = p.free[:n]
	return q
}

// put returns a drained queue to the pool without blocking.
func (p *ramPool[K, V]) put(q []item[K, V]) {
	p.mu.Lock()
	p.free = append(p.free, q[:0])
	p.mu.Unlock()
	p.cond.Signal()
}
