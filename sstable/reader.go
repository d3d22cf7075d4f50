// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"time"

	"github.com/hummockdb/hummock/internal/base"
	"github.com/hummockdb/hummock/sstable/block"
	"github.com/hummockdb/hummock/sstable/rowblk"
)

// ReadBlock validates, decompresses and parses a physical block. The returned
// Block holds a single reference owned by the caller and does not alias
// physical.
func ReadBlock(physical []byte, o ReaderOptions) (*rowblk.Block, error) {
	o = o.ensureDefaults()
	if err := checkComparer(o.Comparer); err != nil {
		return nil, err
	}
	start := time.Now()
	h, err := block.Decode(physical, o.Checksum, o.BufferPool)
	if err != nil {
		return nil, reportReadError(o, len(physical), err)
	}
	b, err := rowblk.NewBlock(h)
	if err != nil {
		return nil, reportReadError(o, len(physical), err)
	}
	o.Metrics.RecordLoad(len(physical), time.Since(start))
	return b, nil
}

func reportReadError(o ReaderOptions, n int, err error) error {
	if base.IsCorruptionError(err) {
		o.Metrics.RecordCorruption()
		o.Logger.Errorf("hummock: corrupt block of %d bytes: %v", n, err)
	}
	return err
}
