// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package rowblk

import (
	"fmt"
	"iter"

	"github.com/cockroachdb/errors"
	"github.com/hummockdb/hummock/internal/base"
	"github.com/hummockdb/hummock/internal/invariants"
)

// SeekPos selects the window a seek searches.
type SeekPos int8

const (
	// SeekOrigin searches the whole block.
	SeekOrigin SeekPos = iota
	// SeekCurrent bounds the search by the iterator's current position: a
	// forward seek never lands before it and a backward seek never lands after
	// it.
	SeekCurrent
)

// String implements fmt.Stringer.
func (p SeekPos) String() string {
	switch p {
	case SeekOrigin:
		return "origin"
	case SeekCurrent:
		return "current"
	default:
		return fmt.Sprintf("SeekPos(%d)", int8(p))
	}
}

// Iter is a cursor over a single Block.
//
// The iterator position is a signed index: -1 is before the first entry,
// Len() is after the last one, and anything in between is a valid entry. Keys
// are reconstructed into a buffer owned by the iterator; the key returned by a
// positioning call is invalidated by the next positioning call. Values are
// slices of the block itself and remain valid while the iterator holds the
// block.
//
// An Iter is not safe for concurrent use. Any number of iterators may share a
// Block.
type Iter struct {
	blk *Block
	idx int
	// key holds the reconstructed key of the most recently decoded entry. Its
	// first prevOverlap bytes always equal the block's base key, which lets
	// setIdx copy only the change in shared prefix length between entries.
	key         []byte
	value       []byte
	prevOverlap int
	closeCheck  invariants.CloseChecker
}

// NewIter returns an iterator over b positioned before the first entry. The
// iterator holds a reference to b until it is closed or rebound.
func NewIter(b *Block) *Iter {
	i := &Iter{}
	i.SetBlock(b)
	return i
}

// SetBlock rebinds the iterator to b and resets it to the position before the
// first entry. The reference held on the previous block, if any, is dropped.
func (i *Iter) SetBlock(b *Block) {
	if b != nil {
		b.Ref()
	}
	if i.blk != nil {
		i.blk.Unref()
	}
	i.blk = b
	i.idx = -1
	i.key = i.key[:0]
	i.value = nil
	i.prevOverlap = 0
	i.closeCheck.Reset()
}

// String implements fmt.Stringer, describing the iterator's position.
func (i *Iter) String() string {
	if i.blk == nil {
		return "rowblk.Iter(unbound)"
	}
	return fmt.Sprintf("rowblk.Iter(entry %d of %d)", i.idx, i.blk.Len())
}

// setIdx positions the iterator at idx and decodes the entry there. It returns
// false if idx is out of range, in which case the iterator is positioned
// before the first or after the last entry and the key and value buffers are
// left untouched.
func (i *Iter) setIdx(idx int) bool {
	n := i.blk.Len()
	if idx < 0 || idx >= n {
		i.idx = min(max(idx, -1), n)
		return false
	}

	h, rest := DecodeHeader(i.blk.RawEntry(idx))
	overlap := int(h.Overlap)
	baseKey := i.blk.BaseKey()
	if overlap > len(baseKey) {
		panic(base.CorruptionErrorf("hummock/rowblk: entry %d overlaps %d bytes of a %d byte base key",
			errors.Safe(idx), errors.Safe(overlap), errors.Safe(len(baseKey))))
	}
	if overlap > i.prevOverlap {
		// The bytes past prevOverlap belong to the previous entry's suffix.
		i.key = append(i.key[:i.prevOverlap], baseKey[i.prevOverlap:overlap]...)
	} else {
		i.key = i.key[:overlap]
	}
	i.key = append(i.key, rest[:h.Diff]...)
	i.value = rest[h.Diff:]
	i.prevOverlap = overlap
	i.idx = idx
	return true
}

// partitionPoint returns the smallest index in [start, end] for which f
// returns false, assuming f is true for a prefix of [start, end) and false
// afterwards. Each call of f may reposition the iterator, so callers must
// position it explicitly once the search is done.
func (i *Iter) partitionPoint(start, end int, f func(*Iter, int) bool) int {
	lo, hi := start, end
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if f(i, mid) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Seek moves the iterator to the first entry whose key is greater than or
// equal to key. With SeekCurrent the search starts at the current position
// instead of the start of the block. It returns false and leaves the iterator
// after the last entry if there is no such entry.
func (i *Iter) Seek(key []byte, whence SeekPos) bool {
	start := 0
	if whence == SeekCurrent {
		start = max(i.idx, 0)
	}
	idx := i.partitionPoint(start, i.blk.Len(), func(i *Iter, idx int) bool {
		i.setIdx(idx)
		return base.CompareVersionedKeys(i.key, key) < 0
	})
	return i.setIdx(idx)
}

// SeekLE moves the iterator to the last entry whose key is less than or equal
// to key. With SeekCurrent the search ends at the current position instead of
// the end of the block. It returns false and leaves the iterator before the
// first entry if there is no such entry.
func (i *Iter) SeekLE(key []byte, whence SeekPos) bool {
	end := i.blk.Len()
	if whence == SeekCurrent {
		end = min(max(i.idx+1, 0), end)
	}
	idx := i.partitionPoint(0, end, func(i *Iter, idx int) bool {
		i.setIdx(idx)
		return base.CompareVersionedKeys(i.key, key) <= 0
	})
	return i.setIdx(idx - 1)
}

// SeekToFirst moves the iterator to the first entry.
func (i *Iter) SeekToFirst() bool {
	return i.setIdx(0)
}

// SeekToLast moves the iterator to the last entry. The block must not be
// empty.
func (i *Iter) SeekToLast() bool {
	if i.blk.Len() == 0 {
		panic(errors.AssertionFailedf("hummock/rowblk: SeekToLast on an empty block"))
	}
	return i.setIdx(i.blk.Len() - 1)
}

// Next moves the iterator to the next entry.
func (i *Iter) Next() bool {
	return i.setIdx(i.idx + 1)
}

// Prev moves the iterator to the previous entry.
func (i *Iter) Prev() bool {
	return i.setIdx(i.idx - 1)
}

// Data returns the key and raw value at the current position. ok is false if
// the iterator is not positioned at an entry.
func (i *Iter) Data() (key, value []byte, ok bool) {
	if !i.Valid() {
		return nil, nil, false
	}
	return i.key, i.value, true
}

// Key returns the key at the current position, or nil.
func (i *Iter) Key() []byte {
	if !i.Valid() {
		return nil
	}
	return i.key
}

// Value returns the raw value at the current position, or nil.
func (i *Iter) Value() []byte {
	if !i.Valid() {
		return nil
	}
	return i.value
}

// Valid returns true if the iterator is positioned at an entry.
func (i *Iter) Valid() bool {
	return i.blk != nil && i.idx >= 0 && i.idx < i.blk.Len()
}

// IsLast returns true if the iterator is positioned at the last entry.
func (i *Iter) IsLast() bool {
	return i.blk != nil && i.idx >= 0 && i.idx == i.blk.Len()-1
}

// Index returns the current position: -1 before the first entry and Len()
// after the last.
func (i *Iter) Index() int {
	return i.idx
}

// All returns an iterator over every key and raw value in the block, starting
// from the first entry. The yielded key is only valid until the next
// iteration.
func (i *Iter) All() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for ok := i.SeekToFirst(); ok; ok = i.Next() {
			if !yield(i.key, i.value) {
				return
			}
		}
	}
}

// Close releases the iterator's reference to its block.
func (i *Iter) Close() error {
	i.closeCheck.Close()
	if i.blk != nil {
		i.blk.Unref()
		i.blk = nil
	}
	i.idx = -1
	i.key = i.key[:0]
	i.value = nil
	i.prevOverlap = 0
	return nil
}
