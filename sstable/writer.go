// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"slices"

	"github.com/hummockdb/hummock/internal/base"
	"github.com/hummockdb/hummock/sstable/block"
	"github.com/hummockdb/hummock/sstable/rowblk"
)

// KV is a versioned key paired with its value.
type KV struct {
	Key   base.VersionedKey
	Value base.Value
}

// SortKVs sorts kvs into block order.
func SortKVs(kvs []KV) {
	slices.SortFunc(kvs, func(a, b KV) int {
		return a.Key.Compare(b.Key)
	})
}

// BlockWriter builds a single physical block: a row-oriented block that is
// compressed and followed by a checksummed trailer.
type BlockWriter struct {
	opts  WriterOptions
	w     rowblk.Writer
	flush block.FlushGovernor
	maker block.PhysicalBlockMaker
}

// NewBlockWriter returns a BlockWriter configured by o.
func NewBlockWriter(o WriterOptions) (*BlockWriter, error) {
	o = o.ensureDefaults()
	if err := checkComparer(o.Comparer); err != nil {
		return nil, err
	}
	w := &BlockWriter{
		opts: o,
		flush: block.MakeFlushGovernor(o.BlockSize, o.BlockSizeThreshold,
			o.SizeClassAwareThreshold, o.AllocatorSizeClasses),
	}
	w.maker.Init(o.Compression, o.Checksum)
	return w, nil
}

// Add adds a key and value to the block. Keys must be added in strictly
// increasing order.
func (w *BlockWriter) Add(key base.VersionedKey, value base.Value) error {
	return w.w.AddVersioned(key, value)
}

// AddRaw adds an encoded key and an encoded value to the block.
func (w *BlockWriter) AddRaw(key, value []byte) error {
	return w.w.Add(key, value)
}

// EntryCount returns the number of entries added since the last Finish.
func (w *BlockWriter) EntryCount() int {
	return w.w.EntryCount()
}

// EstimatedSize returns the uncompressed size the block would have if it were
// finished now.
func (w *BlockWriter) EstimatedSize() int {
	return w.w.EstimatedSize()
}

// ShouldFlush returns true if the block should be finished before key and
// value are added to it. An empty block never needs flushing.
func (w *BlockWriter) ShouldFlush(key base.VersionedKey, value base.Value) bool {
	if w.w.EntryCount() == 0 {
		return false
	}
	size := w.w.EstimatedSize()
	if size < w.flush.LowWatermark() {
		return false
	}
	// Overestimate the new entry by ignoring the prefix it shares with the
	// block's base key.
	newSize := size + rowblk.HeaderLen + key.Size() + value.EncodedLen() + 4
	return w.flush.ShouldFlush(size, newSize)
}

// Finish appends the physical block to dst and resets the writer.
func (w *BlockWriter) Finish(dst []byte) []byte {
	return w.maker.Make(dst, w.w.Finish())
}

// WriteBlock builds a physical block holding kvs, which must be sorted and
// free of duplicates.
func WriteBlock(kvs []KV, o WriterOptions) ([]byte, error) {
	w, err := NewBlockWriter(o)
	if err != nil {
		return nil, err
	}
	for _, kv := range kvs {
		if err := w.Add(kv.Key, kv.Value); err != nil {
			return nil, err
		}
	}
	return w.Finish(nil), nil
}
