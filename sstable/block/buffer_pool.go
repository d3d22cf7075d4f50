// Copyright 2023 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package block

import (
	"sync"

	"github.com/hummockdb/hummock/internal/invariants"
)

// A BufferPool recycles the buffers that decompressed blocks are loaded into.
// Buffers larger than the pool's maximum reused size are left to the garbage
// collector when released. A BufferPool is safe for concurrent use.
type BufferPool struct {
	pool           sync.Pool
	maxReusedBytes int
}

// DefaultBufferPool is the pool used when no other pool is configured.
var DefaultBufferPool = NewBufferPool(256 << 10 /* 256 KB */)

// NewBufferPool constructs a pool that keeps released buffers of at most
// maxReusedBytes capacity.
func NewBufferPool(maxReusedBytes int) *BufferPool {
	return &BufferPool{maxReusedBytes: maxReusedBytes}
}

// Alloc allocates a buffer of length n. If the pool holds a buffer with
// sufficient capacity, the pooled buffer is used instead.
func (p *BufferPool) Alloc(n int) BufferHandle {
	if v := p.pool.Get(); v != nil {
		b := v.(*[]byte)
		if cap(*b) >= n {
			return BufferHandle{b: (*b)[:n], p: p}
		}
		p.pool.Put(b)
	}
	return BufferHandle{b: make([]byte, n), p: p}
}

func (p *BufferPool) release(b []byte) {
	if cap(b) > p.maxReusedBytes {
		return
	}
	if invariants.Enabled && invariants.Sometimes(10) {
		invariants.Mangle(b)
	}
	b = b[:0]
	p.pool.Put(&b)
}

// A BufferHandle is a handle to the memory holding a block. The handle may
// point to a buffer allocated from a BufferPool, or to memory the caller
// manages itself (see MakeBufferHandle).
//
// A BufferHandle carries no reference count of its own: whoever owns it must
// call Release exactly once. Sharing among many readers is arranged by the
// owner (see rowblk.Block).
type BufferHandle struct {
	b []byte
	p *BufferPool
}

// MakeBufferHandle wraps memory that is not owned by any pool. Release is a
// no-op for such handles.
func MakeBufferHandle(b []byte) BufferHandle {
	return BufferHandle{b: b}
}

// Valid returns true if the BufferHandle holds a buffer.
func (bh BufferHandle) Valid() bool {
	return bh.b != nil
}

// BlockData retrieves the buffer for the block data.
func (bh BufferHandle) BlockData() []byte {
	return bh.b
}

// Release releases the buffer back to its pool, if any. It is okay to call
// Release on a zero-value BufferHandle (to no effect).
func (bh BufferHandle) Release() {
	if bh.p != nil {
		bh.p.release(bh.b)
	}
}
