// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rowblk

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/hummockdb/hummock/internal/base"
	"github.com/hummockdb/hummock/internal/invariants"
	"github.com/hummockdb/hummock/sstable/block"
)

const offsetLen = 4

// Block is an immutable, parsed data block. The encoded form is
//
//	[entry 0]...[entry n-1][offset 0]...[offset n-1][n]
//
// where every offset and n are little-endian uint32s and entry i spans the
// bytes [offset i, offset i+1). The last entry ends where the offset table
// begins. Entry 0 always stores its whole key, which becomes the block's base
// key; every other key in the block is stored relative to it.
//
// A Block is safe for concurrent use by any number of iterators. It is
// reference counted: it starts with a single reference, iterators take their
// own, and the underlying buffer is released when the last one is dropped.
type Block struct {
	refs   atomic.Int32
	handle block.BufferHandle

	// data holds the entries region.
	data []byte
	// offsets holds the raw offset table, offsetLen bytes per entry.
	offsets []byte
	n       int
	size    int
	baseKey []byte
}

// ParseBlock parses an encoded block. The returned Block references data, which
// must remain unmodified for the lifetime of the Block.
func ParseBlock(data []byte) (*Block, error) {
	b := &Block{}
	if err := b.init(data); err != nil {
		return nil, err
	}
	b.refs.Store(1)
	return b, nil
}

// NewBlock parses the block held by h. The Block takes ownership of the
// handle: it is released when the last reference to the Block is dropped, or
// immediately if the block fails to parse.
func NewBlock(h block.BufferHandle) (*Block, error) {
	b := &Block{}
	if err := b.init(h.BlockData()); err != nil {
		h.Release()
		return nil, err
	}
	b.handle = h
	b.refs.Store(1)
	return b, nil
}

func (b *Block) init(data []byte) error {
	if len(data) < offsetLen {
		return base.CorruptionErrorf("hummock/rowblk: block of %d bytes is too short", errors.Safe(len(data)))
	}
	n := int64(binary.LittleEndian.Uint32(data[len(data)-offsetLen:]))
	tableLen := (n + 1) * offsetLen
	if tableLen > int64(len(data)) {
		return base.CorruptionErrorf("hummock/rowblk: block of %d bytes cannot hold %d offsets",
			errors.Safe(len(data)), errors.Safe(n))
	}
	entriesEnd := len(data) - int(tableLen)
	b.data = data[:entriesEnd:entriesEnd]
	b.offsets = data[entriesEnd : len(data)-offsetLen]
	b.n = int(n)
	b.size = len(data)
	b.baseKey = nil
	if b.n == 0 {
		if entriesEnd != 0 {
			return base.CorruptionErrorf("hummock/rowblk: empty block has %d bytes of entries",
				errors.Safe(entriesEnd))
		}
		return nil
	}

	// Offsets must start at zero, increase strictly and leave room for a header
	// in every entry.
	prev := -1
	for i := 0; i < b.n; i++ {
		off := b.offset(i)
		switch {
		case i == 0 && off != 0:
			return base.CorruptionErrorf("hummock/rowblk: first entry at offset %d", errors.Safe(off))
		case i > 0 && off < prev+HeaderLen:
			return base.CorruptionErrorf("hummock/rowblk: offset %d of entry %d follows offset %d",
				errors.Safe(off), errors.Safe(i), errors.Safe(prev))
		}
		prev = off
	}
	if prev+HeaderLen > entriesEnd {
		return base.CorruptionErrorf("hummock/rowblk: last entry at offset %d overruns entries region of %d bytes",
			errors.Safe(prev), errors.Safe(entriesEnd))
	}

	// Every header must describe a key that fits in its entry and shares no
	// more with the base key than the base key has.
	for i := 0; i < b.n; i++ {
		entry := b.RawEntry(i)
		h := Header{
			Overlap: binary.LittleEndian.Uint16(entry),
			Diff:    binary.LittleEndian.Uint16(entry[2:]),
		}
		if int(h.Diff) > len(entry)-HeaderLen {
			return base.CorruptionErrorf("hummock/rowblk: entry %d has key suffix of %d bytes in %d bytes",
				errors.Safe(i), errors.Safe(h.Diff), errors.Safe(len(entry)))
		}
		if i == 0 {
			if h.Overlap != 0 {
				return base.CorruptionErrorf("hummock/rowblk: first entry has overlap %d", errors.Safe(h.Overlap))
			}
			b.baseKey = entry[HeaderLen : HeaderLen+int(h.Diff) : HeaderLen+int(h.Diff)]
			continue
		}
		if int(h.Overlap) > len(b.baseKey) {
			return base.CorruptionErrorf("hummock/rowblk: entry %d overlaps %d bytes of a %d byte base key",
				errors.Safe(i), errors.Safe(h.Overlap), errors.Safe(len(b.baseKey)))
		}
	}
	return nil
}

func (b *Block) offset(i int) int {
	return int(binary.LittleEndian.Uint32(b.offsets[i*offsetLen:]))
}

// Len returns the number of entries in the block.
func (b *Block) Len() int {
	return b.n
}

// RawEntry returns the encoded entry at index i: the header, the key suffix
// and the value. The returned slice aliases the block and must not be
// modified.
func (b *Block) RawEntry(i int) []byte {
	if invariants.Enabled {
		invariants.CheckBounds(i, b.n)
	}
	start := b.offset(i)
	end := len(b.data)
	if i+1 < b.n {
		end = b.offset(i + 1)
	}
	return b.data[start:end:end]
}

// BaseKey returns the full key of the first entry, or nil for an empty block.
func (b *Block) BaseKey() []byte {
	return b.baseKey
}

// Size returns the encoded size of the block in bytes.
func (b *Block) Size() int {
	return b.size
}

// Ref adds a reference to the block.
func (b *Block) Ref() {
	if v := b.refs.Add(1); invariants.Enabled && v <= 1 {
		panic(errors.AssertionFailedf("hummock/rowblk: Ref of released block"))
	}
}

// Unref drops a reference to the block, releasing its buffer when the last
// reference is dropped.
func (b *Block) Unref() {
	switch v := b.refs.Add(-1); {
	case v == 0:
		b.handle.Release()
		b.handle = block.BufferHandle{}
		if invariants.Enabled {
			b.data, b.offsets, b.baseKey = nil, nil, nil
		}
	case v < 0:
		panic(errors.AssertionFailedf("hummock/rowblk: block refcount underflow: %d", v))
	}
}

// Refs returns the current number of references to the block.
func (b *Block) Refs() int32 {
	return b.refs.Load()
}
