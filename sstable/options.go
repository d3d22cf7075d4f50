// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"github.com/cockroachdb/errors"
	"github.com/hummockdb/hummock/internal/base"
	"github.com/hummockdb/hummock/sstable/block"
)

const (
	// DefaultBlockSize is the default target uncompressed size of a data block.
	DefaultBlockSize = 64 << 10
	// DefaultBlockSizeThreshold is the default percentage of the target block
	// size below which a block is never finished.
	DefaultBlockSizeThreshold = 90
	// DefaultSizeClassAwareThreshold is the default percentage of the target
	// block size below which size classes are not considered.
	DefaultSizeClassAwareThreshold = 60
)

// Comparer is an alias for base.Comparer.
type Comparer = base.Comparer

// Logger is an alias for base.Logger.
type Logger = base.Logger

// Exported Compression constants.
const (
	DefaultCompression = block.DefaultCompression
	NoCompression      = block.NoCompression
	SnappyCompression  = block.SnappyCompression
	ZstdCompression    = block.ZstdCompression
	MinlzCompression   = block.MinlzCompression
)

// ReaderOptions holds the parameters needed for loading blocks.
type ReaderOptions struct {
	// Checksum is the checksum algorithm the blocks were written with.
	//
	// The default value is xxhash64. ChecksumTypeNone is treated as unset and
	// also selects xxhash64.
	Checksum block.ChecksumType

	// Comparer defines the ordering of keys within a block. Blocks are always
	// ordered by base.CompareVersionedKeys and any other comparer is rejected.
	//
	// The default value is base.VersionedComparer.
	Comparer *Comparer

	// Logger receives reports of corrupt blocks.
	//
	// The default value discards all output.
	Logger Logger

	// Metrics, if set, is updated on every block load.
	Metrics *block.ReadMetrics

	// BufferPool is the pool decompressed blocks are allocated from.
	//
	// The default value is block.DefaultBufferPool.
	BufferPool *block.BufferPool
}

func (o ReaderOptions) ensureDefaults() ReaderOptions {
	if o.Checksum == block.ChecksumTypeNone {
		o.Checksum = block.ChecksumTypeXXHash64
	}
	if o.Comparer == nil {
		o.Comparer = base.VersionedComparer
	}
	if o.Logger == nil {
		o.Logger = base.NoopLogger{}
	}
	if o.BufferPool == nil {
		o.BufferPool = block.DefaultBufferPool
	}
	return o
}

// WriterOptions holds the parameters used to control building blocks.
type WriterOptions struct {
	// BlockSize is the target uncompressed size in bytes of each block.
	//
	// The default value is 64 KiB.
	BlockSize int

	// BlockSizeThreshold finishes a block if it is larger than this percentage
	// of BlockSize and adding the next entry would push it past BlockSize.
	//
	// The default value is 90.
	BlockSizeThreshold int

	// SizeClassAwareThreshold is the percentage of BlockSize below which a
	// block is never finished when AllocatorSizeClasses are in use.
	//
	// The default value is 60.
	SizeClassAwareThreshold int

	// AllocatorSizeClasses, if set, are the sorted allocation size classes
	// blocks are loaded into. Blocks are then finished close to a class
	// boundary. See block.JemallocSizeClasses.
	AllocatorSizeClasses []int

	// Comparer defines the ordering of keys within a block. See
	// ReaderOptions.Comparer.
	//
	// The default value is base.VersionedComparer.
	Comparer *Comparer

	// Compression defines the per-block compression to use.
	//
	// The default value uses snappy compression.
	Compression block.Compression

	// Checksum specifies which checksum to use.
	//
	// The default value is xxhash64. ChecksumTypeNone is treated as unset and
	// also selects xxhash64.
	Checksum block.ChecksumType
}

func (o WriterOptions) ensureDefaults() WriterOptions {
	if o.BlockSize <= 0 {
		o.BlockSize = DefaultBlockSize
	}
	if o.BlockSizeThreshold <= 0 {
		o.BlockSizeThreshold = DefaultBlockSizeThreshold
	}
	if o.SizeClassAwareThreshold <= 0 {
		o.SizeClassAwareThreshold = DefaultSizeClassAwareThreshold
	}
	if o.Comparer == nil {
		o.Comparer = base.VersionedComparer
	}
	if o.Compression <= block.DefaultCompression || o.Compression >= block.NCompression {
		o.Compression = block.SnappyCompression
	}
	if o.Checksum == block.ChecksumTypeNone {
		o.Checksum = block.ChecksumTypeXXHash64
	}
	return o
}

func checkComparer(c *Comparer) error {
	if c.Name != base.VersionedComparer.Name {
		return errors.Newf("hummock: comparer %q is not supported; blocks are ordered by %q",
			errors.Safe(c.Name), errors.Safe(base.VersionedComparer.Name))
	}
	return nil
}
