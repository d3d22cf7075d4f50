// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package rowblk defines facilities for row-oriented data blocks whose keys
// are front-coded against the first key of the block.
package rowblk

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/crlib/crbytes"
	"github.com/cockroachdb/errors"
	"github.com/hummockdb/hummock/internal/base"
)

const (
	// MaximumSize is the largest encoded block the offset table can address.
	MaximumSize = math.MaxUint32
	// EmptySize holds the size of an empty block. Every block ends in a uint32
	// trailer encoding the number of entries within the block.
	EmptySize = offsetLen
)

// ErrBlockTooBig is surfaced when a block exceeds the maximum size.
var ErrBlockTooBig = errors.New("rowblk: block size exceeds maximum size")

// ErrKeyTooLarge is surfaced when a key's explicit suffix cannot be described
// by an entry header.
var ErrKeyTooLarge = errors.New("rowblk: key suffix exceeds maximum size")

// Writer buffers and serializes key/value pairs into a row-oriented block.
// Keys must be added in strictly increasing order under
// base.CompareVersionedKeys.
type Writer struct {
	nEntries int
	buf      []byte
	offsets  []uint32
	// baseKey is the first key added to the block.
	baseKey []byte
	curKey  []byte
	// curValue aliases the value bytes of the most recent entry in buf.
	curValue []byte
}

// Reset resets the block writer to empty, preserving buffers for reuse.
func (w *Writer) Reset() {
	*w = Writer{
		buf:     w.buf[:0],
		offsets: w.offsets[:0],
		baseKey: w.baseKey[:0],
		curKey:  w.curKey[:0],
	}
}

// EntryCount returns the count of entries written to the writer.
func (w *Writer) EntryCount() int {
	return w.nEntries
}

// CurKey returns the most recently written key.
func (w *Writer) CurKey() []byte {
	return w.curKey
}

// CurValue returns the most recently written value.
func (w *Writer) CurValue() []byte {
	return w.curValue
}

// Add adds an encoded versioned key and its raw value to the block.
func (w *Writer) Add(key, value []byte) error {
	if w.nEntries > 0 && base.CompareVersionedKeys(w.curKey, key) >= 0 {
		return errors.Newf("rowblk: keys must be added in strictly increasing order: %s, %s",
			base.FormatVersionedKey(w.curKey), base.FormatVersionedKey(key))
	}

	var overlap int
	if w.nEntries > 0 {
		overlap = min(crbytes.CommonPrefix(w.baseKey, key), math.MaxUint16)
	}
	diff := len(key) - overlap
	if diff > math.MaxUint16 {
		return errors.WithDetailf(ErrKeyTooLarge, "key of %d bytes shares %d bytes with the base key",
			errors.Safe(len(key)), errors.Safe(overlap))
	}
	entryLen := HeaderLen + diff + len(value)
	if int64(w.EstimatedSize())+int64(entryLen)+offsetLen > MaximumSize {
		return ErrBlockTooBig
	}

	w.offsets = append(w.offsets, uint32(len(w.buf)))
	w.buf = Header{Overlap: uint16(overlap), Diff: uint16(diff)}.Encode(w.buf)
	w.buf = append(w.buf, key[overlap:]...)
	valueStart := len(w.buf)
	w.buf = append(w.buf, value...)
	w.curValue = w.buf[valueStart:len(w.buf):len(w.buf)]

	if w.nEntries == 0 {
		w.baseKey = append(w.baseKey[:0], key...)
	}
	w.curKey = append(w.curKey[:0], key...)
	w.nEntries++
	return nil
}

// AddVersioned adds a versioned key and a value to the block.
func (w *Writer) AddVersioned(key base.VersionedKey, value base.Value) error {
	var scratch [64]byte
	return w.Add(key.Encode(scratch[:0]), value.Encode(nil))
}

// Finish finalizes the block, serializes it and returns the serialized data.
// The returned slice is owned by the writer and remains valid until the next
// call to Add or Reset.
func (w *Writer) Finish() []byte {
	for _, off := range w.offsets {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, off)
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(w.offsets)))
	result := w.buf

	// Reset the block state.
	w.nEntries = 0
	w.buf = w.buf[:0]
	w.offsets = w.offsets[:0]
	w.baseKey = w.baseKey[:0]
	w.curKey = w.curKey[:0]
	w.curValue = nil
	return result
}

// EstimatedSize returns the estimated size of the block in bytes.
func (w *Writer) EstimatedSize() int {
	return len(w.buf) + offsetLen*len(w.offsets) + EmptySize
}
